package spoonacular

// RecipeSummary is the provider's search-result shape. The diet flags and
// match counts are only populated by the endpoints that return them.
type RecipeSummary struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Image          string `json:"image"`
	ReadyInMinutes int    `json:"readyInMinutes"`
	Servings       int    `json:"servings"`

	Vegetarian bool `json:"vegetarian"`
	Vegan      bool `json:"vegan"`
	GlutenFree bool `json:"glutenFree"`
	DairyFree  bool `json:"dairyFree"`

	// Populated by findByIngredients: how many of the caller's ingredients
	// the recipe uses and how many extra ones it needs. Passed through from
	// the provider unmodified.
	UsedIngredientCount   int `json:"usedIngredientCount,omitempty"`
	MissedIngredientCount int `json:"missedIngredientCount,omitempty"`
}

// Ingredient is a measured recipe ingredient
type Ingredient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// InstructionStep is one numbered step of a recipe
type InstructionStep struct {
	Number int    `json:"number"`
	Step   string `json:"step"`
}

// AnalyzedInstruction groups ordered steps, optionally under a section name
type AnalyzedInstruction struct {
	Name  string            `json:"name"`
	Steps []InstructionStep `json:"steps"`
}

// Nutrient is a single nutrition entry
type Nutrient struct {
	Name                string  `json:"name"`
	Amount              float64 `json:"amount"`
	Unit                string  `json:"unit"`
	PercentOfDailyNeeds float64 `json:"percentOfDailyNeeds,omitempty"`
}

// Nutrition is the nutrition block attached to a recipe detail
type Nutrition struct {
	Nutrients []Nutrient `json:"nutrients"`
}

// RecipeDetail is the full recipe shape returned by the information endpoint
type RecipeDetail struct {
	RecipeSummary
	Summary              string                `json:"summary"`
	ExtendedIngredients  []Ingredient          `json:"extendedIngredients"`
	AnalyzedInstructions []AnalyzedInstruction `json:"analyzedInstructions"`
	Nutrition            *Nutrition            `json:"nutrition,omitempty"`
}

// Steps flattens the analyzed instructions into one ordered sequence
func (d *RecipeDetail) Steps() []InstructionStep {
	var steps []InstructionStep
	for _, instr := range d.AnalyzedInstructions {
		steps = append(steps, instr.Steps...)
	}
	return steps
}

// NutritionWidget is the response of the nutrition widget endpoint
type NutritionWidget struct {
	Calories  string     `json:"calories"`
	Carbs     string     `json:"carbs"`
	Fat       string     `json:"fat"`
	Protein   string     `json:"protein"`
	Nutrients []Nutrient `json:"nutrients,omitempty"`
}

// EquipmentItem is one piece of kitchen equipment a recipe needs
type EquipmentItem struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Equipment is the response of the equipment widget endpoint
type Equipment struct {
	Equipment []EquipmentItem `json:"equipment"`
}

// searchResponse wraps complexSearch results
type searchResponse struct {
	Results      []RecipeSummary `json:"results"`
	Offset       int             `json:"offset"`
	Number       int             `json:"number"`
	TotalResults int             `json:"totalResults"`
}

// randomResponse wraps the random endpoint results
type randomResponse struct {
	Recipes []RecipeSummary `json:"recipes"`
}
