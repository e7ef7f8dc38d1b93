package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/internal/domain/tier"
)

type athleteRow struct {
	ID      int64 `gorm:"primaryKey;autoIncrement:false"`
	Name    string
	Country string
	Gender  string `gorm:"index"`
}

func (athleteRow) TableName() string { return "athletes" }

type eventRow struct {
	ID         int64 `gorm:"primaryKey;autoIncrement:false"`
	Name       string
	Date       time.Time `gorm:"index"`
	Discipline string    `gorm:"index:idx_events_scope"`
	Gender     string    `gorm:"index:idx_events_scope"`
	Status     string
}

func (eventRow) TableName() string { return "events" }

type resultRow struct {
	EventID   int64 `gorm:"primaryKey;autoIncrement:false"`
	AthleteID int64 `gorm:"primaryKey;autoIncrement:false"`
	Rank      int   `gorm:"column:rank"`
	Score     int
}

func (resultRow) TableName() string { return "results" }

type rankingRow struct {
	Season     int    `gorm:"primaryKey;autoIncrement:false"`
	Discipline string `gorm:"primaryKey"`
	Gender     string `gorm:"primaryKey"`
	AthleteID  int64  `gorm:"primaryKey;autoIncrement:false"`
	Rank       int    `gorm:"column:rank"`
	Score      *float64
}

func (rankingRow) TableName() string { return "athlete_rankings" }

type registrationRow struct {
	EventID   int64 `gorm:"primaryKey;autoIncrement:false"`
	AthleteID int64 `gorm:"primaryKey;autoIncrement:false"`
}

func (registrationRow) TableName() string { return "event_registrations" }

type leagueRow struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name              string
	AdminID           string `gorm:"index"`
	Gender            string
	Discipline        string
	InviteCode        string `gorm:"uniqueIndex"`
	TransfersPerEvent int
	TeamSize          int
	CaptainMultiplier float64
	TierConfig        datatypes.JSON `gorm:"type:jsonb"`
	DraftLockedAt     *time.Time
	CreatedAt         time.Time
}

func (leagueRow) TableName() string { return "leagues" }

type leagueEventRow struct {
	LeagueID uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID  int64     `gorm:"primaryKey;autoIncrement:false"`
}

func (leagueEventRow) TableName() string { return "league_events" }

type memberRow struct {
	LeagueID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   string    `gorm:"primaryKey"`
	Role     string
}

func (memberRow) TableName() string { return "league_members" }

type teamRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	LeagueID  uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_teams_league_user"`
	UserID    string    `gorm:"uniqueIndex:idx_teams_league_user"`
	Name      string
	CreatedAt time.Time
}

func (teamRow) TableName() string { return "teams" }

type rosterRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TeamID    uuid.UUID `gorm:"type:uuid;index"`
	AthleteID int64
	IsCaptain bool
	AddedAt   time.Time
	RemovedAt *time.Time
}

func (rosterRow) TableName() string { return "roster_intervals" }

type captaincyRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TeamID     uuid.UUID `gorm:"type:uuid;index"`
	AthleteID  int64
	SetAt      time.Time
	ReplacedAt *time.Time
}

func (captaincyRow) TableName() string { return "captaincy_intervals" }

type transferRow struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	TeamID       uuid.UUID `gorm:"type:uuid;index:idx_transfers_team_event"`
	AfterEventID int64     `gorm:"index:idx_transfers_team_event"`
	AthleteOutID int64
	AthleteInID  int64
	NewCaptainID *int64
	CreatedAt    time.Time
	RevertedAt   *time.Time
}

func (transferRow) TableName() string { return "transfers" }

func allRows() []any {
	return []any{
		&athleteRow{}, &eventRow{}, &resultRow{}, &rankingRow{}, &registrationRow{},
		&leagueRow{}, &leagueEventRow{}, &memberRow{}, &teamRow{},
		&rosterRow{}, &captaincyRow{}, &transferRow{},
	}
}

func toLeagueRow(l model.League) (leagueRow, error) {
	tiers, err := json.Marshal(l.Tiers)
	if err != nil {
		return leagueRow{}, err
	}
	return leagueRow{
		ID:                l.ID,
		Name:              l.Name,
		AdminID:           l.AdminID,
		Gender:            string(l.Gender),
		Discipline:        string(l.Discipline),
		InviteCode:        l.InviteCode,
		TransfersPerEvent: l.TransfersPerEvent,
		TeamSize:          l.TeamSize,
		CaptainMultiplier: l.CaptainMultiplier,
		TierConfig:        datatypes.JSON(tiers),
		DraftLockedAt:     l.DraftLockedAt,
		CreatedAt:         l.CreatedAt,
	}, nil
}

func (r leagueRow) toModel(eventIDs []int64) (model.League, error) {
	var tiers tier.Config
	if len(r.TierConfig) > 0 {
		if err := json.Unmarshal(r.TierConfig, &tiers); err != nil {
			return model.League{}, err
		}
	}
	return model.League{
		ID:                r.ID,
		Name:              r.Name,
		AdminID:           r.AdminID,
		Gender:            model.Gender(r.Gender),
		Discipline:        model.Discipline(r.Discipline),
		InviteCode:        r.InviteCode,
		TransfersPerEvent: r.TransfersPerEvent,
		TeamSize:          r.TeamSize,
		CaptainMultiplier: r.CaptainMultiplier,
		Tiers:             tiers,
		EventIDs:          eventIDs,
		DraftLockedAt:     r.DraftLockedAt,
		CreatedAt:         r.CreatedAt,
	}, nil
}

func (r eventRow) toModel() model.Event {
	return model.Event{
		ID:         r.ID,
		Name:       r.Name,
		Date:       r.Date.UTC(),
		Discipline: model.Discipline(r.Discipline),
		Gender:     model.Gender(r.Gender),
		Status:     model.EventStatus(r.Status),
	}
}

func (r rosterRow) toModel() model.RosterInterval {
	return model.RosterInterval{
		ID:        r.ID,
		TeamID:    r.TeamID,
		AthleteID: r.AthleteID,
		IsCaptain: r.IsCaptain,
		AddedAt:   r.AddedAt.UTC(),
		RemovedAt: utcPtr(r.RemovedAt),
	}
}

func (r captaincyRow) toModel() model.CaptaincyInterval {
	return model.CaptaincyInterval{
		ID:         r.ID,
		TeamID:     r.TeamID,
		AthleteID:  r.AthleteID,
		SetAt:      r.SetAt.UTC(),
		ReplacedAt: utcPtr(r.ReplacedAt),
	}
}

func (r transferRow) toModel() model.Transfer {
	return model.Transfer{
		ID:           r.ID,
		TeamID:       r.TeamID,
		AfterEventID: r.AfterEventID,
		AthleteOutID: r.AthleteOutID,
		AthleteInID:  r.AthleteInID,
		NewCaptainID: r.NewCaptainID,
		CreatedAt:    r.CreatedAt.UTC(),
		RevertedAt:   utcPtr(r.RevertedAt),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
