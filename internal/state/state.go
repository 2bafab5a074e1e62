// Package state implements the client-side state container: a reducer
// over one immutable snapshot, applying discrete commands and exposing
// derived read views. Commands never mutate a previously returned
// snapshot; every mutation produces a fresh deep copy.
package state

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caloriechat/caloriechat/internal/model"
	"github.com/caloriechat/caloriechat/internal/nutrition"
)

// ChangeListener is notified after every mutating command with the new
// snapshot. The sync coordinator uses it to schedule autosaves. Load is
// not a user change and never fires the listener.
type ChangeListener func(*model.Snapshot)

// Store holds the current snapshot and serializes all commands. The
// reducer itself never blocks; network and timers live in the sync layer.
type Store struct {
	mu       sync.RWMutex
	snap     *model.Snapshot
	listener ChangeListener

	now   func() time.Time
	newID func() string
}

// New creates a store holding the default initial snapshot for today.
func New() *Store {
	s := &Store{
		now:   time.Now,
		newID: uuid.NewString,
	}
	s.snap = model.NewSnapshot(s.today())
	return s
}

// OnChange installs the listener fired after each mutating command.
func (s *Store) OnChange(fn ChangeListener) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

func (s *Store) today() string {
	return s.now().Format("2006-01-02")
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// apply runs the mutation under the lock and notifies the listener with
// the resulting snapshot.
func (s *Store) apply(fn func(next *model.Snapshot)) *model.Snapshot {
	s.mu.Lock()
	next := s.snap.Clone()
	fn(next)
	s.snap = next
	listener := s.listener
	out := next.Clone()
	s.mu.Unlock()

	if listener != nil {
		listener(out)
	}
	return out
}

// AddCustomFood creates a user-defined food. Identity, creation timestamp
// and the isCustom marker are stamped here; calories are derived from the
// macro grams.
func (s *Store) AddCustomFood(name, servingSize string, protein, carbs, fat float64) model.CustomFood {
	food := model.CustomFood{
		ID:          s.newID(),
		Name:        name,
		Calories:    nutrition.CaloriesFromMacros(protein, carbs, fat),
		Protein:     protein,
		Carbs:       carbs,
		Fat:         fat,
		ServingSize: servingSize,
		CreatedAt:   s.timestamp(),
		IsCustom:    true,
	}
	s.apply(func(next *model.Snapshot) {
		next.CustomFoods = append(next.CustomFoods, food)
	})
	return food
}

// UpdateCustomFood replaces the food with a matching id wholesale. Unknown
// ids are ignored.
func (s *Store) UpdateCustomFood(food model.CustomFood) {
	s.apply(func(next *model.Snapshot) {
		for i := range next.CustomFoods {
			if next.CustomFoods[i].ID == food.ID {
				next.CustomFoods[i] = food
				return
			}
		}
	})
}

// DeleteCustomFood removes a food by id. Its absence from the next save
// payload is what deletes it from the store.
func (s *Store) DeleteCustomFood(id string) {
	s.apply(func(next *model.Snapshot) {
		foods := next.CustomFoods[:0]
		for _, f := range next.CustomFoods {
			if f.ID != id {
				foods = append(foods, f)
			}
		}
		next.CustomFoods = foods
	})
}

// AddChatMessage appends a message to the current date's transcript,
// stamping id and timestamp at append time.
func (s *Store) AddChatMessage(role, content string, foodItems []model.ConsumedFood) model.ChatMessage {
	msg := model.ChatMessage{
		ID:        s.newID(),
		Role:      role,
		Content:   content,
		Timestamp: s.timestamp(),
		FoodItems: foodItems,
	}
	s.apply(func(next *model.Snapshot) {
		date := next.CurrentDate
		next.ChatHistory[date] = append(next.ChatHistory[date], msg)
	})
	return msg
}

// AddConsumedFood logs a food against the current date's entry, creating
// the entry lazily and recomputing its totals from the full food list.
// The line item gets its own identity, distinct from any custom food it
// originated from.
func (s *Store) AddConsumedFood(food model.ConsumedFood) model.ConsumedFood {
	food.FoodID = s.newID()
	if food.Time == "" {
		food.Time = s.timestamp()
	}
	s.apply(func(next *model.Snapshot) {
		date := next.CurrentDate
		for i := range next.DailyEntries {
			if next.DailyEntries[i].Date == date {
				next.DailyEntries[i].Foods = append(next.DailyEntries[i].Foods, food)
				next.DailyEntries[i].Recompute()
				return
			}
		}
		entry := model.DailyEntry{
			ID:    s.newID(),
			Date:  date,
			Foods: []model.ConsumedFood{food},
		}
		entry.Recompute()
		next.DailyEntries = append(next.DailyEntries, entry)
	})
	return food
}

// DeleteConsumedFood removes a line item by id from the current date's
// entry and recomputes the totals. The entry itself stays, possibly empty.
func (s *Store) DeleteConsumedFood(foodID string) {
	s.apply(func(next *model.Snapshot) {
		date := next.CurrentDate
		for i := range next.DailyEntries {
			if next.DailyEntries[i].Date != date {
				continue
			}
			foods := next.DailyEntries[i].Foods[:0]
			for _, f := range next.DailyEntries[i].Foods {
				if f.FoodID != foodID {
					foods = append(foods, f)
				}
			}
			next.DailyEntries[i].Foods = foods
			next.DailyEntries[i].Recompute()
			return
		}
	})
}

// SettingsPatch is a partial settings update; nil fields keep their
// current value.
type SettingsPatch struct {
	TargetCalories *int
	MacroRatio     *model.MacroRatio
	Theme          *string
}

// UpdateSettings merges a partial update into the existing settings.
func (s *Store) UpdateSettings(patch SettingsPatch) {
	s.apply(func(next *model.Snapshot) {
		if patch.TargetCalories != nil {
			next.Settings.TargetCalories = *patch.TargetCalories
		}
		if patch.MacroRatio != nil {
			next.Settings.MacroRatio = *patch.MacroRatio
		}
		if patch.Theme != nil {
			next.Settings.Theme = *patch.Theme
		}
	})
}

// SetCurrentDate switches the date the derived views and logging commands
// operate on.
func (s *Store) SetCurrentDate(date string) {
	s.apply(func(next *model.Snapshot) {
		next.CurrentDate = date
	})
}

// Load replaces the whole snapshot, pinning CurrentDate to today
// regardless of what the loaded document carried. It does not fire the
// change listener: a load is not a user edit and must not re-trigger a
// save loop.
func (s *Store) Load(snap *model.Snapshot) {
	next := snap.Clone()
	next.CurrentDate = s.today()
	if next.ChatHistory == nil {
		next.ChatHistory = map[string][]model.ChatMessage{}
	}

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()
}

// TodaysChat returns the current date's transcript, empty when none.
func (s *Store) TodaysChat() []model.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.snap.ChatHistory[s.snap.CurrentDate]
	out := make([]model.ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// TodaysEntry returns the current date's daily entry, or an entry-shaped
// zero value for that date when nothing has been logged yet.
func (s *Store) TodaysEntry() model.DailyEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.snap.DailyEntries {
		if e.Date == s.snap.CurrentDate {
			return e.Clone()
		}
	}
	return model.DailyEntry{Date: s.snap.CurrentDate, Foods: []model.ConsumedFood{}}
}

// CustomFoodByName finds the first custom food whose name contains the
// given text, case-insensitively.
func (s *Store) CustomFoodByName(name string) (model.CustomFood, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(name)
	for _, f := range s.snap.CustomFoods {
		if strings.Contains(strings.ToLower(f.Name), needle) {
			return f, true
		}
	}
	return model.CustomFood{}, false
}
