// Package nutrition holds the small amount of nutrition math the client
// performs itself.
package nutrition

// Calorie content per macro gram (Atwater factors).
const (
	CaloriesPerGramProtein = 4
	CaloriesPerGramCarbs   = 4
	CaloriesPerGramFat     = 9
)

// CaloriesFromMacros derives total calories from macro grams. Custom
// foods store this value redundantly next to the macros.
func CaloriesFromMacros(protein, carbs, fat float64) float64 {
	return protein*CaloriesPerGramProtein + carbs*CaloriesPerGramCarbs + fat*CaloriesPerGramFat
}
