package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/formline/pkg/formline/decode"
	"github.com/cognicore/formline/pkg/formline/internalerr"
	"github.com/cognicore/formline/pkg/formline/reconcile"
	"github.com/cognicore/formline/pkg/formline/store"
)

const dateLayout = "2006-01-02"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %v", path, internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w: %v", path, internalerr.ErrStoreUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS horses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	country TEXT NOT NULL,
	year INTEGER NOT NULL,
	trainer TEXT,
	trainer_form TEXT,
	prize_code TEXT,
	prize_money INTEGER DEFAULT 0,
	UNIQUE(name, country, year)
);

CREATE TABLE IF NOT EXISTS horse_runs (
	horse_id INTEGER NOT NULL,
	race_date TEXT NOT NULL,
	course TEXT NOT NULL,
	run_json TEXT NOT NULL,
	PRIMARY KEY(horse_id, race_date, course),
	FOREIGN KEY(horse_id) REFERENCES horses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS races (
	id TEXT PRIMARY KEY,
	race_date TEXT NOT NULL,
	course TEXT NOT NULL,
	discipline TEXT NOT NULL,
	type_code TEXT NOT NULL,
	type_json TEXT NOT NULL,
	distance REAL NOT NULL,
	going TEXT NOT NULL,
	ran INTEGER NOT NULL,
	prize REAL
);

CREATE INDEX IF NOT EXISTS races_by_date ON races(race_date);

CREATE TABLE IF NOT EXISTS race_runners (
	race_id TEXT NOT NULL,
	place INTEGER NOT NULL,
	horse_key TEXT NOT NULL,
	name TEXT NOT NULL,
	country TEXT NOT NULL,
	year INTEGER NOT NULL,
	trainer TEXT,
	run_json TEXT NOT NULL,
	PRIMARY KEY(race_id, place),
	FOREIGN KEY(race_id) REFERENCES races(id) ON DELETE CASCADE
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertHorse inserts or updates a horse keyed by (name, country, year) and
// merges its runs by date and course.
func (s *sqliteStore) UpsertHorse(ctx context.Context, h decode.Horse) error {
	if h.Name == "" {
		return fmt.Errorf("upsert horse: empty name: %w", internalerr.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO horses (name, country, year, trainer, trainer_form, prize_code, prize_money)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name, country, year) DO UPDATE SET
	trainer=excluded.trainer,
	trainer_form=excluded.trainer_form,
	prize_code=excluded.prize_code,
	prize_money=excluded.prize_money
RETURNING id;
`

	var horseID int64
	err = tx.QueryRowContext(
		ctx,
		stmt,
		h.Name,
		h.Country,
		h.Year,
		h.Trainer,
		h.TrainerForm,
		h.PrizeCode,
		h.PrizeMoney,
	).Scan(&horseID)
	if err != nil {
		return err
	}

	if err := upsertRuns(ctx, tx, horseID, h.Runs); err != nil {
		return err
	}

	return tx.Commit()
}

func upsertRuns(ctx context.Context, tx *sql.Tx, horseID int64, runs []decode.Run) error {
	if len(runs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO horse_runs (horse_id, race_date, course, run_json)
VALUES (?, ?, ?, ?)
ON CONFLICT(horse_id, race_date, course) DO UPDATE SET run_json=excluded.run_json`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range runs {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, horseID, r.Date.Format(dateLayout), r.Course, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// GetHorse retrieves a horse and its runs by identity
func (s *sqliteStore) GetHorse(ctx context.Context, name, country string, year int) (decode.Horse, bool, error) {
	h := decode.Horse{Name: name, Country: country, Year: year}
	var (
		id                       int64
		trainer, form, prizeCode sql.NullString
		prizeMoney               sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, trainer, trainer_form, prize_code, prize_money
FROM horses WHERE name = ? AND country = ? AND year = ?`,
		name, country, year).Scan(&id, &trainer, &form, &prizeCode, &prizeMoney)
	if err == sql.ErrNoRows {
		return decode.Horse{}, false, nil
	}
	if err != nil {
		return decode.Horse{}, false, err
	}
	h.Trainer = trainer.String
	h.TrainerForm = form.String
	h.PrizeCode = prizeCode.String
	h.PrizeMoney = int(prizeMoney.Int64)

	rows, err := s.db.QueryContext(ctx, `
SELECT run_json FROM horse_runs WHERE horse_id = ? ORDER BY race_date, course`, id)
	if err != nil {
		return decode.Horse{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return decode.Horse{}, false, err
		}
		var r decode.Run
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return decode.Horse{}, false, fmt.Errorf("horse %s run: %w", h.Identity(), err)
		}
		h.Runs = append(h.Runs, r)
	}
	if err := rows.Err(); err != nil {
		return decode.Horse{}, false, err
	}
	return h, true, nil
}

// PutRace stores a finalized race, replacing any race with the same ID
func (s *sqliteStore) PutRace(ctx context.Context, r reconcile.Race) error {
	if r.ID == "" {
		return fmt.Errorf("put race: empty id: %w", internalerr.ErrInvalidInput)
	}
	typeJSON, err := json.Marshal(r.Type)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO races (id, race_date, course, discipline, type_code, type_json, distance, going, ran, prize)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	race_date=excluded.race_date,
	course=excluded.course,
	discipline=excluded.discipline,
	type_code=excluded.type_code,
	type_json=excluded.type_json,
	distance=excluded.distance,
	going=excluded.going,
	ran=excluded.ran,
	prize=excluded.prize`,
		r.ID,
		r.Key.Date,
		r.Key.Course,
		string(r.Key.Discipline),
		r.Key.TypeCode,
		string(typeJSON),
		r.Key.Distance,
		r.Key.Going,
		r.Key.Ran,
		r.Prize,
	)
	if err != nil {
		return err
	}

	if err := replaceRunners(ctx, tx, r.ID, r.Runners); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceRunners(ctx context.Context, tx *sql.Tx, raceID string, runners []reconcile.Runner) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM race_runners WHERE race_id=?`, raceID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO race_runners (race_id, place, horse_key, name, country, year, trainer, run_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, rn := range runners {
		data, err := json.Marshal(rn.Run)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, raceID, i, rn.HorseID, rn.Name, rn.Country, rn.Year, rn.Trainer, string(data)); err != nil {
			return err
		}
	}
	return nil
}

// GetRace retrieves a race by ID
func (s *sqliteStore) GetRace(ctx context.Context, id string) (reconcile.Race, error) {
	races, err := s.queryRaces(ctx, `WHERE id = ?`, id)
	if err != nil {
		return reconcile.Race{}, err
	}
	if len(races) == 0 {
		return reconcile.Race{}, fmt.Errorf("race %s: %w", id, internalerr.ErrNotFound)
	}
	return races[0], nil
}

// RacesOn returns the races run on date, ordered by course then ID
func (s *sqliteStore) RacesOn(ctx context.Context, date time.Time) ([]reconcile.Race, error) {
	return s.queryRaces(ctx, `WHERE race_date = ?`, date.Format(dateLayout))
}

func (s *sqliteStore) queryRaces(ctx context.Context, where string, args ...interface{}) ([]reconcile.Race, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, race_date, course, discipline, type_code, type_json, distance, going, ran, prize
FROM races `+where+` ORDER BY course, id`, args...)
	if err != nil {
		return nil, err
	}

	var races []reconcile.Race
	for rows.Next() {
		var (
			r          reconcile.Race
			discipline string
			typeJSON   string
			prize      sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Key.Date, &r.Key.Course, &discipline, &r.Key.TypeCode,
			&typeJSON, &r.Key.Distance, &r.Key.Going, &r.Key.Ran, &prize); err != nil {
			rows.Close()
			return nil, err
		}
		r.Key.Discipline = decode.Discipline(discipline)
		if err := json.Unmarshal([]byte(typeJSON), &r.Type); err != nil {
			rows.Close()
			return nil, fmt.Errorf("race %s type: %w", r.ID, err)
		}
		if r.Date, err = time.Parse(dateLayout, r.Key.Date); err != nil {
			rows.Close()
			return nil, fmt.Errorf("race %s date: %w", r.ID, err)
		}
		r.Course = r.Key.Course
		r.Distance = r.Key.Distance
		r.Going = r.Key.Going
		r.Ran = r.Key.Ran
		r.Prize = prize.Float64
		races = append(races, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range races {
		if races[i].Runners, err = s.loadRunners(ctx, races[i].ID); err != nil {
			return nil, err
		}
	}
	return races, nil
}

func (s *sqliteStore) loadRunners(ctx context.Context, raceID string) ([]reconcile.Runner, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT horse_key, name, country, year, trainer, run_json
FROM race_runners WHERE race_id = ? ORDER BY place`, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runners []reconcile.Runner
	for rows.Next() {
		var (
			rn      reconcile.Runner
			trainer sql.NullString
			data    string
		)
		if err := rows.Scan(&rn.HorseID, &rn.Name, &rn.Country, &rn.Year, &trainer, &data); err != nil {
			return nil, err
		}
		rn.Trainer = trainer.String
		if err := json.Unmarshal([]byte(data), &rn.Run); err != nil {
			return nil, fmt.Errorf("race %s runner %s: %w", raceID, rn.HorseID, err)
		}
		runners = append(runners, rn)
	}
	return runners, rows.Err()
}

// Counts returns the number of stored horses, runs and races
func (s *sqliteStore) Counts(ctx context.Context) (store.Counts, error) {
	var c store.Counts
	err := s.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM horses),
	(SELECT COUNT(*) FROM horse_runs),
	(SELECT COUNT(*) FROM races)`).Scan(&c.Horses, &c.Runs, &c.Races)
	return c, err
}
