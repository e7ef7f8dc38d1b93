package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/fantasy-climbing/internal/domain/model"
)

const upsertBatchSize = 500

// GormStore is a Store backed by a relational database through gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// OpenPostgres opens a gorm handle on a PostgreSQL DSN.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return db, nil
}

// NewGormStore wraps an open gorm handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates every table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(allRows()...)
}

// Ping checks the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return translate(err)
	}
	return translate(sqlDB.PingContext(ctx))
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return translate(err)
	}
	return sqlDB.Close()
}

// WithTx runs fn in a database transaction.
func (s *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func (f AthleteFilter) scope(db *gorm.DB) *gorm.DB {
	if len(f.IDs) > 0 {
		db = db.Where("id IN ?", f.IDs)
	}
	if f.Gender != "" {
		db = db.Where("gender = ?", string(f.Gender))
	}
	return db
}

func (f EventFilter) scope(db *gorm.DB) *gorm.DB {
	if len(f.IDs) > 0 {
		db = db.Where("id IN ?", f.IDs)
	}
	if f.Discipline != "" {
		db = db.Where("discipline = ?", string(f.Discipline))
	}
	if f.Gender != "" {
		db = db.Where("gender = ?", string(f.Gender))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		db = db.Where("status IN ?", statuses)
	}
	return db
}

func (f ResultFilter) scope(db *gorm.DB) *gorm.DB {
	if len(f.EventIDs) > 0 {
		db = db.Where("event_id IN ?", f.EventIDs)
	}
	if len(f.AthleteIDs) > 0 {
		db = db.Where("athlete_id IN ?", f.AthleteIDs)
	}
	return db
}

func (f RankingFilter) scope(db *gorm.DB) *gorm.DB {
	if f.Season != 0 {
		db = db.Where("season = ?", f.Season)
	}
	if f.Discipline != "" {
		db = db.Where("discipline = ?", string(f.Discipline))
	}
	if f.Gender != "" {
		db = db.Where("gender = ?", string(f.Gender))
	}
	if len(f.AthleteIDs) > 0 {
		db = db.Where("athlete_id IN ?", f.AthleteIDs)
	}
	return db
}

func (f LeagueFilter) scope(db *gorm.DB) *gorm.DB {
	if len(f.IDs) > 0 {
		db = db.Where("id IN ?", f.IDs)
	}
	if f.InviteCode != "" {
		db = db.Where("invite_code = ?", f.InviteCode)
	}
	return db
}

func (f MemberFilter) scope(db *gorm.DB) *gorm.DB {
	if f.LeagueID != uuid.Nil {
		db = db.Where("league_id = ?", f.LeagueID)
	}
	if f.UserID != "" {
		db = db.Where("user_id = ?", f.UserID)
	}
	return db
}

func (f TeamFilter) scope(db *gorm.DB) *gorm.DB {
	if len(f.IDs) > 0 {
		db = db.Where("id IN ?", f.IDs)
	}
	if len(f.LeagueIDs) > 0 {
		db = db.Where("league_id IN ?", f.LeagueIDs)
	}
	if f.UserID != "" {
		db = db.Where("user_id = ?", f.UserID)
	}
	return db
}

func (f RosterFilter) scope(db *gorm.DB) *gorm.DB {
	if len(f.TeamIDs) > 0 {
		db = db.Where("team_id IN ?", f.TeamIDs)
	}
	if len(f.AthleteIDs) > 0 {
		db = db.Where("athlete_id IN ?", f.AthleteIDs)
	}
	if f.OpenOnly {
		db = db.Where("removed_at IS NULL")
	}
	if f.AddedAt != nil {
		db = db.Where("added_at = ?", *f.AddedAt)
	}
	if f.RemovedAt != nil {
		db = db.Where("removed_at = ?", *f.RemovedAt)
	}
	return db
}

func (f CaptaincyFilter) scope(db *gorm.DB) *gorm.DB {
	if len(f.TeamIDs) > 0 {
		db = db.Where("team_id IN ?", f.TeamIDs)
	}
	if f.OpenOnly {
		db = db.Where("replaced_at IS NULL")
	}
	if f.SetAt != nil {
		db = db.Where("set_at = ?", *f.SetAt)
	}
	if f.ReplacedAt != nil {
		db = db.Where("replaced_at = ?", *f.ReplacedAt)
	}
	return db
}

func (f TransferFilter) scope(db *gorm.DB) *gorm.DB {
	if len(f.IDs) > 0 {
		db = db.Where("id IN ?", f.IDs)
	}
	if len(f.TeamIDs) > 0 {
		db = db.Where("team_id IN ?", f.TeamIDs)
	}
	if f.AfterEventID != 0 {
		db = db.Where("after_event_id = ?", f.AfterEventID)
	}
	if f.AthleteOutID != 0 {
		db = db.Where("athlete_out_id = ?", f.AthleteOutID)
	}
	if f.Reverted != nil {
		if *f.Reverted {
			db = db.Where("reverted_at IS NOT NULL")
		} else {
			db = db.Where("reverted_at IS NULL")
		}
	}
	return db
}

// Athletes implements Reader.
func (s *GormStore) Athletes(ctx context.Context, f AthleteFilter) ([]model.Athlete, error) {
	var rows []athleteRow
	if err := s.db.WithContext(ctx).Scopes(f.scope).Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]model.Athlete, len(rows))
	for i, r := range rows {
		out[i] = model.Athlete{ID: r.ID, Name: r.Name, Country: r.Country, Gender: model.Gender(r.Gender)}
	}
	return out, nil
}

// Events implements Reader.
func (s *GormStore) Events(ctx context.Context, f EventFilter) ([]model.Event, error) {
	var rows []eventRow
	if err := s.db.WithContext(ctx).Scopes(f.scope).Order("date, id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]model.Event, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// Results implements Reader.
func (s *GormStore) Results(ctx context.Context, f ResultFilter) ([]model.Result, error) {
	var rows []resultRow
	if err := s.db.WithContext(ctx).Scopes(f.scope).Order("event_id, rank").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]model.Result, len(rows))
	for i, r := range rows {
		out[i] = model.Result{EventID: r.EventID, AthleteID: r.AthleteID, Rank: r.Rank, Score: r.Score}
	}
	return out, nil
}

// Rankings implements Reader.
func (s *GormStore) Rankings(ctx context.Context, f RankingFilter) ([]model.Ranking, error) {
	var rows []rankingRow
	if err := s.db.WithContext(ctx).Scopes(f.scope).Order("rank, athlete_id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]model.Ranking, len(rows))
	for i, r := range rows {
		out[i] = model.Ranking{
			Season:     r.Season,
			Discipline: model.Discipline(r.Discipline),
			Gender:     model.Gender(r.Gender),
			AthleteID:  r.AthleteID,
			Rank:       r.Rank,
			Score:      r.Score,
		}
	}
	return out, nil
}

// Registrations implements Reader.
func (s *GormStore) Registrations(ctx context.Context, eventID int64) ([]model.Registration, error) {
	var rows []registrationRow
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("athlete_id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]model.Registration, len(rows))
	for i, r := range rows {
		out[i] = model.Registration{EventID: r.EventID, AthleteID: r.AthleteID}
	}
	return out, nil
}

// Leagues implements Reader.
func (s *GormStore) Leagues(ctx context.Context, f LeagueFilter) ([]model.League, error) {
	db := s.db.WithContext(ctx)
	var rows []leagueRow
	if err := db.Scopes(f.scope).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	if len(rows) == 0 {
		return []model.League{}, nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var links []leagueEventRow
	if err := db.Where("league_id IN ?", ids).Order("event_id").Find(&links).Error; err != nil {
		return nil, translate(err)
	}
	events := make(map[uuid.UUID][]int64, len(rows))
	for _, l := range links {
		events[l.LeagueID] = append(events[l.LeagueID], l.EventID)
	}
	out := make([]model.League, 0, len(rows))
	for _, r := range rows {
		l, err := r.toModel(events[r.ID])
		if err != nil {
			return nil, translate(err)
		}
		out = append(out, l)
	}
	return out, nil
}

// Members implements Reader.
func (s *GormStore) Members(ctx context.Context, f MemberFilter) ([]model.LeagueMember, error) {
	var rows []memberRow
	if err := s.db.WithContext(ctx).Scopes(f.scope).Order("league_id, user_id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]model.LeagueMember, len(rows))
	for i, r := range rows {
		out[i] = model.LeagueMember{LeagueID: r.LeagueID, UserID: r.UserID, Role: r.Role}
	}
	return out, nil
}

// Teams implements Reader.
func (s *GormStore) Teams(ctx context.Context, f TeamFilter) ([]model.Team, error) {
	var rows []teamRow
	if err := s.db.WithContext(ctx).Scopes(f.scope).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]model.Team, len(rows))
	for i, r := range rows {
		out[i] = model.Team{ID: r.ID, LeagueID: r.LeagueID, UserID: r.UserID, Name: r.Name, CreatedAt: r.CreatedAt.UTC()}
	}
	return out, nil
}

// RosterIntervals implements Reader.
func (s *GormStore) RosterIntervals(ctx context.Context, f RosterFilter) ([]model.RosterInterval, error) {
	var rows []rosterRow
	if err := s.db.WithContext(ctx).Scopes(f.scope).Order("added_at, athlete_id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]model.RosterInterval, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// Captaincies implements Reader.
func (s *GormStore) Captaincies(ctx context.Context, f CaptaincyFilter) ([]model.CaptaincyInterval, error) {
	var rows []captaincyRow
	if err := s.db.WithContext(ctx).Scopes(f.scope).Order("set_at").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]model.CaptaincyInterval, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// Transfers implements Reader.
func (s *GormStore) Transfers(ctx context.Context, f TransferFilter) ([]model.Transfer, error) {
	var rows []transferRow
	if err := s.db.WithContext(ctx).Scopes(f.scope).Order("created_at DESC, id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]model.Transfer, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func upsert[T any](ctx context.Context, db *gorm.DB, rows []T, conflict clause.OnConflict) error {
	if len(rows) == 0 {
		return nil
	}
	return translate(db.WithContext(ctx).Clauses(conflict).CreateInBatches(rows, upsertBatchSize).Error)
}

// UpsertAthletes implements Writer.
func (s *GormStore) UpsertAthletes(ctx context.Context, athletes []model.Athlete) error {
	rows := make([]athleteRow, len(athletes))
	for i, a := range athletes {
		rows[i] = athleteRow{ID: a.ID, Name: a.Name, Country: a.Country, Gender: string(a.Gender)}
	}
	return upsert(ctx, s.db, rows, clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "country", "gender"}),
	})
}

// UpsertEvents implements Writer.
func (s *GormStore) UpsertEvents(ctx context.Context, events []model.Event) error {
	rows := make([]eventRow, len(events))
	for i, e := range events {
		rows[i] = eventRow{
			ID:         e.ID,
			Name:       e.Name,
			Date:       e.Date,
			Discipline: string(e.Discipline),
			Gender:     string(e.Gender),
			Status:     string(e.Status),
		}
	}
	return upsert(ctx, s.db, rows, clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "date", "discipline", "gender", "status"}),
	})
}

// UpsertResults implements Writer.
func (s *GormStore) UpsertResults(ctx context.Context, results []model.Result) error {
	rows := make([]resultRow, len(results))
	for i, r := range results {
		rows[i] = resultRow{EventID: r.EventID, AthleteID: r.AthleteID, Rank: r.Rank, Score: r.Score}
	}
	return upsert(ctx, s.db, rows, clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "athlete_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rank", "score"}),
	})
}

// UpsertRankings implements Writer.
func (s *GormStore) UpsertRankings(ctx context.Context, rankings []model.Ranking) error {
	rows := make([]rankingRow, len(rankings))
	for i, r := range rankings {
		rows[i] = rankingRow{
			Season:     r.Season,
			Discipline: string(r.Discipline),
			Gender:     string(r.Gender),
			AthleteID:  r.AthleteID,
			Rank:       r.Rank,
			Score:      r.Score,
		}
	}
	return upsert(ctx, s.db, rows, clause.OnConflict{
		Columns:   []clause.Column{{Name: "season"}, {Name: "discipline"}, {Name: "gender"}, {Name: "athlete_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rank", "score"}),
	})
}

// UpsertRegistrations implements Writer.
func (s *GormStore) UpsertRegistrations(ctx context.Context, regs []model.Registration) error {
	rows := make([]registrationRow, len(regs))
	for i, r := range regs {
		rows[i] = registrationRow{EventID: r.EventID, AthleteID: r.AthleteID}
	}
	return upsert(ctx, s.db, rows, clause.OnConflict{DoNothing: true})
}

// InsertLeague implements Writer.
func (s *GormStore) InsertLeague(ctx context.Context, l model.League) error {
	row, err := toLeagueRow(l)
	if err != nil {
		return translate(err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return translate(err)
		}
		if len(l.EventIDs) == 0 {
			return nil
		}
		links := make([]leagueEventRow, len(l.EventIDs))
		for i, id := range l.EventIDs {
			links[i] = leagueEventRow{LeagueID: l.ID, EventID: id}
		}
		return translate(tx.Create(&links).Error)
	})
}

// UpdateLeague implements Writer.
func (s *GormStore) UpdateLeague(ctx context.Context, id uuid.UUID, p LeaguePatch) error {
	if p.DraftLockedAt == nil {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&leagueRow{}).Where("id = ?", id).Update("draft_locked_at", *p.DraftLockedAt)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteLeague implements Writer.
func (s *GormStore) DeleteLeague(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var teamIDs []uuid.UUID
		if err := tx.Model(&teamRow{}).Where("league_id = ?", id).Pluck("id", &teamIDs).Error; err != nil {
			return translate(err)
		}
		if len(teamIDs) > 0 {
			for _, row := range []any{&rosterRow{}, &captaincyRow{}, &transferRow{}} {
				if err := tx.Where("team_id IN ?", teamIDs).Delete(row).Error; err != nil {
					return translate(err)
				}
			}
		}
		for _, row := range []any{&teamRow{}, &memberRow{}, &leagueEventRow{}} {
			if err := tx.Where("league_id = ?", id).Delete(row).Error; err != nil {
				return translate(err)
			}
		}
		res := tx.Where("id = ?", id).Delete(&leagueRow{})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// InsertMember implements Writer.
func (s *GormStore) InsertMember(ctx context.Context, m model.LeagueMember) error {
	row := memberRow{LeagueID: m.LeagueID, UserID: m.UserID, Role: m.Role}
	return translate(s.db.WithContext(ctx).Create(&row).Error)
}

// InsertTeam implements Writer.
func (s *GormStore) InsertTeam(ctx context.Context, t model.Team) error {
	row := teamRow{ID: t.ID, LeagueID: t.LeagueID, UserID: t.UserID, Name: t.Name, CreatedAt: t.CreatedAt}
	return translate(s.db.WithContext(ctx).Create(&row).Error)
}

// InsertRosterIntervals implements Writer.
func (s *GormStore) InsertRosterIntervals(ctx context.Context, rows []model.RosterInterval) error {
	if len(rows) == 0 {
		return nil
	}
	out := make([]rosterRow, len(rows))
	for i, r := range rows {
		out[i] = rosterRow{
			ID:        r.ID,
			TeamID:    r.TeamID,
			AthleteID: r.AthleteID,
			IsCaptain: r.IsCaptain,
			AddedAt:   r.AddedAt,
			RemovedAt: r.RemovedAt,
		}
	}
	return translate(s.db.WithContext(ctx).Create(&out).Error)
}

// UpdateRosterIntervals implements Writer.
func (s *GormStore) UpdateRosterIntervals(ctx context.Context, f RosterFilter, p RosterPatch) (int, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}
	updates := map[string]any{}
	if p.RemovedAt != nil {
		updates["removed_at"] = *p.RemovedAt
	}
	if p.Reopen {
		updates["removed_at"] = nil
	}
	if p.IsCaptain != nil {
		updates["is_captain"] = *p.IsCaptain
	}
	if len(updates) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&rosterRow{}).Scopes(f.scope).Updates(updates)
	return int(res.RowsAffected), translate(res.Error)
}

// DeleteRosterIntervals implements Writer.
func (s *GormStore) DeleteRosterIntervals(ctx context.Context, f RosterFilter) (int, error) {
	res := s.db.WithContext(ctx).Scopes(f.scope).Delete(&rosterRow{})
	return int(res.RowsAffected), translate(res.Error)
}

// InsertCaptaincy implements Writer.
func (s *GormStore) InsertCaptaincy(ctx context.Context, c model.CaptaincyInterval) error {
	row := captaincyRow{ID: c.ID, TeamID: c.TeamID, AthleteID: c.AthleteID, SetAt: c.SetAt, ReplacedAt: c.ReplacedAt}
	return translate(s.db.WithContext(ctx).Create(&row).Error)
}

// UpdateCaptaincies implements Writer.
func (s *GormStore) UpdateCaptaincies(ctx context.Context, f CaptaincyFilter, p CaptaincyPatch) (int, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}
	var value any
	if p.ReplacedAt != nil {
		value = *p.ReplacedAt
	}
	res := s.db.WithContext(ctx).Model(&captaincyRow{}).Scopes(f.scope).Update("replaced_at", value)
	return int(res.RowsAffected), translate(res.Error)
}

// DeleteCaptaincies implements Writer.
func (s *GormStore) DeleteCaptaincies(ctx context.Context, f CaptaincyFilter) (int, error) {
	res := s.db.WithContext(ctx).Scopes(f.scope).Delete(&captaincyRow{})
	return int(res.RowsAffected), translate(res.Error)
}

// InsertTransfer implements Writer.
func (s *GormStore) InsertTransfer(ctx context.Context, t model.Transfer) error {
	row := transferRow{
		ID:           t.ID,
		TeamID:       t.TeamID,
		AfterEventID: t.AfterEventID,
		AthleteOutID: t.AthleteOutID,
		AthleteInID:  t.AthleteInID,
		NewCaptainID: t.NewCaptainID,
		CreatedAt:    t.CreatedAt,
		RevertedAt:   t.RevertedAt,
	}
	return translate(s.db.WithContext(ctx).Create(&row).Error)
}

// UpdateTransfers implements Writer.
func (s *GormStore) UpdateTransfers(ctx context.Context, f TransferFilter, p TransferPatch) (int, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Model(&transferRow{}).Scopes(f.scope).Update("reverted_at", *p.RevertedAt)
	return int(res.RowsAffected), translate(res.Error)
}

// DeleteTransfers implements Writer.
func (s *GormStore) DeleteTransfers(ctx context.Context, f TransferFilter) (int, error) {
	res := s.db.WithContext(ctx).Scopes(f.scope).Delete(&transferRow{})
	return int(res.RowsAffected), translate(res.Error)
}
