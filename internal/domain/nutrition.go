package domain

import "time"

// NutritionPlan is a creator-owned meal plan. Its graph is flat, so instead of
// per-client copies every assignment carries a snapshot of the plan.
type NutritionPlan struct {
	ID          string    `bson:"_id" json:"id"`
	CreatorID   string    `bson:"creatorId" json:"creatorId"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Meals       []Meal    `bson:"meals" json:"meals"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Meal struct {
	ID    string     `bson:"id" json:"id"`
	Title string     `bson:"title" json:"title"`
	Items []FoodItem `bson:"items" json:"items"`
}

type FoodItem struct {
	ID       string  `bson:"id" json:"id"`
	Name     string  `bson:"name" json:"name"`
	Grams    float64 `bson:"grams" json:"grams"`
	Calories float64 `bson:"calories" json:"calories"`
}

// NutritionPlanSnapshot is the denormalized copy read directly by the client app.
type NutritionPlanSnapshot struct {
	Title       string `bson:"title" json:"title"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Meals       []Meal `bson:"meals" json:"meals"`
}

type NutritionAssignment struct {
	ID         string                `bson:"_id" json:"id"`
	ClientID   string                `bson:"clientId" json:"clientId"`
	PlanID     string                `bson:"planId" json:"planId"`
	Snapshot   NutritionPlanSnapshot `bson:"snapshot" json:"snapshot"`
	SnapshotAt time.Time             `bson:"snapshotAt" json:"snapshotAt"`
}

// Snapshot builds a fresh denormalized copy of the plan.
func (p *NutritionPlan) Snapshot() NutritionPlanSnapshot {
	meals := make([]Meal, len(p.Meals))
	for i, m := range p.Meals {
		meals[i] = Meal{ID: m.ID, Title: m.Title, Items: append([]FoodItem(nil), m.Items...)}
	}
	return NutritionPlanSnapshot{Title: p.Title, Description: p.Description, Meals: meals}
}
