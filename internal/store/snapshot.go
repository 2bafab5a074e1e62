package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/caloriechat/caloriechat/internal/dbx"
	"github.com/caloriechat/caloriechat/internal/model"
)

// SnapshotStore reads and replaces the full application snapshot. It is
// the only component that touches the five snapshot tables; the gateway
// handlers are its only callers.
type SnapshotStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db, now: time.Now}
}

// Today returns the store's notion of the caller's local today, the value
// stamped into every snapshot at read time.
func (s *SnapshotStore) Today() string {
	return s.now().Format("2006-01-02")
}

// ReadSnapshot assembles the full snapshot from all five tables. Empty
// tables are not an error: settings fall back to defaults and the
// collections come back empty. CurrentDate is always stamped to today,
// never read from storage.
func (s *SnapshotStore) ReadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	snap := model.NewSnapshot(s.Today())

	settings, err := s.readSettings(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		snap.Settings = *settings
	}

	if snap.CustomFoods, err = s.readCustomFoods(ctx, s.db); err != nil {
		return nil, err
	}
	if snap.DailyEntries, err = s.readDailyEntries(ctx, s.db); err != nil {
		return nil, err
	}
	if snap.ChatHistory, err = s.readChatHistory(ctx, s.db); err != nil {
		return nil, err
	}

	return snap, nil
}

// ReplaceSnapshot rewrites the stored state to match the given snapshot in
// one transaction: the settings row is upserted and every other table is
// cleared and reinserted. Either the whole replacement commits or the
// prior state stays authoritative; no partial state is ever visible.
func (s *SnapshotStore) ReplaceSnapshot(ctx context.Context, snap *model.Snapshot) error {
	return dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.now().UTC().Format(time.RFC3339)

		// A document with no settings object keeps the stored row;
		// upserting here would overwrite it with zero values.
		if !snap.SettingsOmitted {
			if err := s.writeSettings(ctx, tx, snap.Settings, now); err != nil {
				return err
			}
		}
		if err := s.writeCustomFoods(ctx, tx, snap.CustomFoods, now); err != nil {
			return err
		}
		if err := s.writeDailyEntries(ctx, tx, snap.DailyEntries, now); err != nil {
			return err
		}
		return s.writeChatHistory(ctx, tx, snap.ChatHistory)
	})
}

// --- settings ---

func (s *SnapshotStore) readSettings(ctx context.Context, q dbx.DBTX) (*model.UserSettings, error) {
	row := q.QueryRowContext(ctx,
		`SELECT target_calories, protein_ratio, carbs_ratio, fat_ratio, theme FROM settings WHERE id = 1`)

	var us model.UserSettings
	err := row.Scan(&us.TargetCalories, &us.MacroRatio.Protein, &us.MacroRatio.Carbs, &us.MacroRatio.Fat, &us.Theme)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return &us, nil
}

func (s *SnapshotStore) writeSettings(ctx context.Context, tx dbx.DBTX, us model.UserSettings, now string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO settings (id, target_calories, protein_ratio, carbs_ratio, fat_ratio, theme, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   target_calories = excluded.target_calories,
		   protein_ratio = excluded.protein_ratio,
		   carbs_ratio = excluded.carbs_ratio,
		   fat_ratio = excluded.fat_ratio,
		   theme = excluded.theme,
		   updated_at = excluded.updated_at`,
		us.TargetCalories, us.MacroRatio.Protein, us.MacroRatio.Carbs, us.MacroRatio.Fat, us.Theme, now,
	)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// --- custom foods ---

const customFoodCols = `id, name, calories, protein, carbs, fat, serving_size, created_at, is_custom`

func scanCustomFood(scanner interface{ Scan(...any) error }) (*model.CustomFood, error) {
	var f model.CustomFood
	var isCustom int
	err := scanner.Scan(&f.ID, &f.Name, &f.Calories, &f.Protein, &f.Carbs, &f.Fat,
		&f.ServingSize, &f.CreatedAt, &isCustom)
	if err != nil {
		return nil, err
	}
	f.IsCustom = isCustom != 0
	return &f, nil
}

func (s *SnapshotStore) readCustomFoods(ctx context.Context, q dbx.DBTX) ([]model.CustomFood, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+customFoodCols+` FROM custom_foods ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("read custom foods: %w", err)
	}
	defer rows.Close()

	foods := []model.CustomFood{}
	for rows.Next() {
		f, err := scanCustomFood(rows)
		if err != nil {
			return nil, fmt.Errorf("scan custom food: %w", err)
		}
		foods = append(foods, *f)
	}
	return foods, rows.Err()
}

func (s *SnapshotStore) writeCustomFoods(ctx context.Context, tx dbx.DBTX, foods []model.CustomFood, now string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM custom_foods`); err != nil {
		return fmt.Errorf("clear custom foods: %w", err)
	}
	for _, f := range foods {
		isCustom := 0
		if f.IsCustom {
			isCustom = 1
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO custom_foods (`+customFoodCols+`, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.Name, f.Calories, f.Protein, f.Carbs, f.Fat, f.ServingSize, f.CreatedAt, isCustom, now,
		)
		if err != nil {
			return fmt.Errorf("insert custom food %q: %w", f.ID, err)
		}
	}
	return nil
}

// --- daily entries + consumed foods ---

func (s *SnapshotStore) readDailyEntries(ctx context.Context, q dbx.DBTX) ([]model.DailyEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, date, total_calories, total_protein, total_carbs, total_fat
		 FROM daily_entries ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("read daily entries: %w", err)
	}
	defer rows.Close()

	entries := []model.DailyEntry{}
	for rows.Next() {
		var e model.DailyEntry
		if err := rows.Scan(&e.ID, &e.Date, &e.TotalCalories, &e.TotalProtein, &e.TotalCarbs, &e.TotalFat); err != nil {
			return nil, fmt.Errorf("scan daily entry: %w", err)
		}
		e.Foods = []model.ConsumedFood{}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		foods, err := s.readConsumedFoods(ctx, q, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Foods = foods
	}
	return entries, nil
}

const consumedFoodCols = `food_id, name, serving_size, quantity, calories, protein, carbs, fat, meal_type, time`

func (s *SnapshotStore) readConsumedFoods(ctx context.Context, q dbx.DBTX, entryID string) ([]model.ConsumedFood, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+consumedFoodCols+` FROM consumed_foods WHERE daily_entry_id = ? ORDER BY time ASC, food_id ASC`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("read consumed foods: %w", err)
	}
	defer rows.Close()

	foods := []model.ConsumedFood{}
	for rows.Next() {
		var f model.ConsumedFood
		err := rows.Scan(&f.FoodID, &f.Name, &f.ServingSize, &f.Quantity,
			&f.Calories, &f.Protein, &f.Carbs, &f.Fat, &f.MealType, &f.Time)
		if err != nil {
			return nil, fmt.Errorf("scan consumed food: %w", err)
		}
		foods = append(foods, f)
	}
	return foods, rows.Err()
}

func (s *SnapshotStore) writeDailyEntries(ctx context.Context, tx dbx.DBTX, entries []model.DailyEntry, now string) error {
	// Line items go first on delete and last on insert to satisfy the
	// foreign key to their parent entry.
	if _, err := tx.ExecContext(ctx, `DELETE FROM consumed_foods`); err != nil {
		return fmt.Errorf("clear consumed foods: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_entries`); err != nil {
		return fmt.Errorf("clear daily entries: %w", err)
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO daily_entries (id, date, total_calories, total_protein, total_carbs, total_fat, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Date, e.TotalCalories, e.TotalProtein, e.TotalCarbs, e.TotalFat, now,
		)
		if err != nil {
			return fmt.Errorf("insert daily entry %q: %w", e.ID, err)
		}

		for _, f := range e.Foods {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO consumed_foods (food_id, daily_entry_id, name, serving_size, quantity, calories, protein, carbs, fat, meal_type, time, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				f.FoodID, e.ID, f.Name, f.ServingSize, f.Quantity,
				f.Calories, f.Protein, f.Carbs, f.Fat, f.MealType, f.Time, now,
			)
			if err != nil {
				return fmt.Errorf("insert consumed food %q: %w", f.FoodID, err)
			}
		}
	}
	return nil
}

// --- chat messages ---

func (s *SnapshotStore) readChatHistory(ctx context.Context, q dbx.DBTX) (map[string][]model.ChatMessage, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, date, role, content, timestamp FROM chat_messages ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("read chat messages: %w", err)
	}
	defer rows.Close()

	history := map[string][]model.ChatMessage{}
	for rows.Next() {
		var m model.ChatMessage
		var date string
		if err := rows.Scan(&m.ID, &date, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		history[date] = append(history[date], m)
	}
	return history, rows.Err()
}

func (s *SnapshotStore) writeChatHistory(ctx context.Context, tx dbx.DBTX, history map[string][]model.ChatMessage) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages`); err != nil {
		return fmt.Errorf("clear chat messages: %w", err)
	}
	for date, msgs := range history {
		for _, m := range msgs {
			// The grouping date is the map key, not part of the
			// message identity. Proposed food items are ephemeral
			// and deliberately not persisted.
			_, err := tx.ExecContext(ctx,
				`INSERT INTO chat_messages (id, date, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
				m.ID, date, m.Role, m.Content, m.Timestamp,
			)
			if err != nil {
				return fmt.Errorf("insert chat message %q: %w", m.ID, err)
			}
		}
	}
	return nil
}
