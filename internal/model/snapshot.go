package model

// MacroRatio is the target macro-nutrient split as integer percentages.
// The three fields are expected to sum to 100; validation is the client's
// responsibility, the store persists whatever it is given.
type MacroRatio struct {
	Protein int `json:"protein"`
	Carbs   int `json:"carbs"`
	Fat     int `json:"fat"`
}

// UserSettings is the singleton settings document.
type UserSettings struct {
	TargetCalories int        `json:"targetCalories"`
	MacroRatio     MacroRatio `json:"macroRatio"`
	Theme          string     `json:"theme"`
}

// CustomFood is a user-defined food. Calories are derived from the macro
// grams (4/4/9) on creation and stored redundantly.
type CustomFood struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fat         float64 `json:"fat"`
	ServingSize string  `json:"servingSize"`
	CreatedAt   string  `json:"createdAt"`
	IsCustom    bool    `json:"isCustom"`
}

// MealType tags a consumed food with the meal it belongs to.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
	MealSnack     = "snack"
)

// ConsumedFood is one logged line item within a daily entry. FoodID is
// generated at log time and is distinct from any CustomFood it came from.
type ConsumedFood struct {
	FoodID      string  `json:"foodId"`
	Name        string  `json:"name"`
	ServingSize string  `json:"servingSize"`
	Quantity    float64 `json:"quantity"`
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fat         float64 `json:"fat"`
	MealType    string  `json:"mealType"`
	Time        string  `json:"time"`
}

// DailyEntry aggregates everything logged for one calendar date. The four
// totals are always recomputed from Foods, never tracked independently.
type DailyEntry struct {
	ID            string         `json:"id"`
	Date          string         `json:"date"`
	Foods         []ConsumedFood `json:"foods"`
	TotalCalories float64        `json:"totalCalories"`
	TotalProtein  float64        `json:"totalProtein"`
	TotalCarbs    float64        `json:"totalCarbs"`
	TotalFat      float64        `json:"totalFat"`
}

// ChatMessage is one transcript line. FoodItems holds foods the assistant
// proposed but the user has not logged yet; it is ephemeral and not
// persisted by the store.
type ChatMessage struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"` // "user" or "assistant"
	Content   string         `json:"content"`
	Timestamp string         `json:"timestamp"`
	FoodItems []ConsumedFood `json:"foodItems,omitempty"`
}

// Snapshot is the full application state exchanged between client and
// store. CurrentDate is always the caller's local today at load time and is
// never trusted from storage.
type Snapshot struct {
	Settings     UserSettings             `json:"settings"`
	CustomFoods  []CustomFood             `json:"customFoods"`
	DailyEntries []DailyEntry             `json:"dailyEntries"`
	ChatHistory  map[string][]ChatMessage `json:"chatHistory"`
	CurrentDate  string                   `json:"currentDate"`

	// SettingsOmitted is set by ParseSnapshot when the document carried
	// no settings object at all. The store then keeps the previously
	// stored settings row instead of writing zero values over it.
	SettingsOmitted bool `json:"-"`
}

// DefaultSettings are applied when no settings row exists yet.
func DefaultSettings() UserSettings {
	return UserSettings{
		TargetCalories: 2000,
		MacroRatio:     MacroRatio{Protein: 30, Carbs: 40, Fat: 30},
		Theme:          "light",
	}
}

// NewSnapshot returns the initial state for the given date: default
// settings and empty collections.
func NewSnapshot(currentDate string) *Snapshot {
	return &Snapshot{
		Settings:     DefaultSettings(),
		CustomFoods:  []CustomFood{},
		DailyEntries: []DailyEntry{},
		ChatHistory:  map[string][]ChatMessage{},
		CurrentDate:  currentDate,
	}
}

// Clone returns a deep copy. Reducer commands copy before mutating so a
// previously returned snapshot is never changed in place.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Settings:        s.Settings,
		CustomFoods:     make([]CustomFood, len(s.CustomFoods)),
		DailyEntries:    make([]DailyEntry, len(s.DailyEntries)),
		ChatHistory:     make(map[string][]ChatMessage, len(s.ChatHistory)),
		CurrentDate:     s.CurrentDate,
		SettingsOmitted: s.SettingsOmitted,
	}
	copy(out.CustomFoods, s.CustomFoods)
	for i, e := range s.DailyEntries {
		out.DailyEntries[i] = e.Clone()
	}
	for date, msgs := range s.ChatHistory {
		cp := make([]ChatMessage, len(msgs))
		for i, m := range msgs {
			cp[i] = m.Clone()
		}
		out.ChatHistory[date] = cp
	}
	return out
}

// Clone returns a deep copy of the entry and its food list.
func (e DailyEntry) Clone() DailyEntry {
	out := e
	out.Foods = make([]ConsumedFood, len(e.Foods))
	copy(out.Foods, e.Foods)
	return out
}

// Clone returns a deep copy of the message and any proposed food items.
func (m ChatMessage) Clone() ChatMessage {
	out := m
	if m.FoodItems != nil {
		out.FoodItems = make([]ConsumedFood, len(m.FoodItems))
		copy(out.FoodItems, m.FoodItems)
	}
	return out
}

// Recompute sets the four totals from the current food list.
func (e *DailyEntry) Recompute() {
	var cal, protein, carbs, fat float64
	for _, f := range e.Foods {
		cal += f.Calories
		protein += f.Protein
		carbs += f.Carbs
		fat += f.Fat
	}
	e.TotalCalories = cal
	e.TotalProtein = protein
	e.TotalCarbs = carbs
	e.TotalFat = fat
}

// Counts summarizes collection sizes for the gateway's summary log lines.
func (s *Snapshot) Counts() (entries, customFoods, messages int) {
	entries = len(s.DailyEntries)
	customFoods = len(s.CustomFoods)
	for _, msgs := range s.ChatHistory {
		messages += len(msgs)
	}
	return entries, customFoods, messages
}
