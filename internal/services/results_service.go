package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rberts/delibera/internal/domain/assembly"
	"github.com/rberts/delibera/internal/domain/voting"
	"github.com/rberts/delibera/internal/logger"
)

// QuorumThreshold is the present ideal fraction, in percent points,
// required for an assembly to deliberate
const QuorumThreshold = 50.0

// QuorumReport aggregates presence against the full roster
type QuorumReport struct {
	TotalUnits      int64   `json:"total_units"`
	TotalFraction   float64 `json:"total_fraction"`
	PresentUnits    int64   `json:"present_units"`
	PresentFraction float64 `json:"present_fraction"`
	HasQuorum       bool    `json:"has_quorum"`
}

// OptionResult is the tally for one option of an agenda item
type OptionResult struct {
	OptionID     uint    `json:"option_id"`
	OptionText   string  `json:"option_text"`
	DisplayOrder int     `json:"display_order"`
	VotesCount   int64   `json:"votes_count"`
	FractionSum  float64 `json:"fraction_sum"`
	Percentage   float64 `json:"percentage"`
}

// AgendaResults is the full tally of an agenda item. Only valid votes
// count toward options and percentages; invalidated votes appear solely
// in InvalidatedCount. Present aggregates are scoped to the agenda's
// assembly, voted aggregates to valid votes on this agenda.
type AgendaResults struct {
	AgendaID             uint           `json:"agenda_id"`
	AgendaStatus         string         `json:"agenda_status"`
	Options              []OptionResult `json:"options"`
	TotalUnitsPresent    int64          `json:"total_units_present"`
	TotalFractionPresent float64        `json:"total_fraction_present"`
	TotalUnitsVoted      int64          `json:"total_units_voted"`
	TotalFractionVoted   float64        `json:"total_fraction_voted"`
	InvalidatedCount     int64          `json:"invalidated_count"`
}

// ResultsService computes quorum and per-agenda tallies. All numbers are
// derived from the ledger at read time; nothing here writes.
type ResultsService struct {
	db *gorm.DB
}

// NewResultsService creates a new results service
func NewResultsService(db *gorm.DB) *ResultsService {
	return &ResultsService{db: db}
}

// Quorum reports presence against the roster. Ideal fractions sum to 100
// across a well-formed roster, so the present fraction doubles as the
// presence percentage.
func (s *ResultsService) Quorum(ctx context.Context, tenantID, assemblyID uint) (*QuorumReport, error) {
	db := s.db.WithContext(ctx)

	if _, err := getAssembly(db, tenantID, assemblyID); err != nil {
		return nil, err
	}

	report := &QuorumReport{}
	err := db.Model(&assembly.Unit{}).
		Select("COUNT(*) AS total_units, COALESCE(SUM(ideal_fraction), 0) AS total_fraction").
		Where("assembly_id = ?", assemblyID).
		Scan(report).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate roster: %w", err)
	}

	summary, err := attendanceSummary(db, assemblyID)
	if err != nil {
		return nil, err
	}
	report.PresentUnits = summary.PresentUnits
	report.PresentFraction = summary.PresentFraction
	report.HasQuorum = report.PresentFraction >= QuorumThreshold

	logger.Service("results").Debug("Quorum computed",
		"assembly_id", assemblyID,
		"present_fraction", report.PresentFraction,
		"has_quorum", report.HasQuorum)
	return report, nil
}

// Results tallies an agenda item per option, weighting each valid vote by
// the ideal fraction of its unit
func (s *ResultsService) Results(ctx context.Context, tenantID, agendaID uint) (*AgendaResults, error) {
	db := s.db.WithContext(ctx)

	item, err := getAgenda(db, tenantID, agendaID)
	if err != nil {
		return nil, err
	}

	results := &AgendaResults{
		AgendaID:     item.ID,
		AgendaStatus: item.Status.String(),
	}

	summary, err := attendanceSummary(db, item.AssemblyID)
	if err != nil {
		return nil, err
	}
	results.TotalUnitsPresent = summary.PresentUnits
	results.TotalFractionPresent = summary.PresentFraction

	type optionRow struct {
		OptionID    uint
		VotesCount  int64
		FractionSum float64
	}
	var rows []optionRow
	err = db.Model(&voting.Vote{}).
		Select("votes.option_id AS option_id, COUNT(*) AS votes_count, COALESCE(SUM(assembly_units.ideal_fraction), 0) AS fraction_sum").
		Joins("JOIN assembly_units ON assembly_units.id = votes.unit_id").
		Where("votes.agenda_id = ? AND votes.is_valid = ?", agendaID, true).
		Group("votes.option_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to tally votes: %w", err)
	}

	// One valid vote per unit, so vote counts double as voted-unit counts.
	tallies := make(map[uint]optionRow, len(rows))
	for _, row := range rows {
		tallies[row.OptionID] = row
		results.TotalUnitsVoted += row.VotesCount
		results.TotalFractionVoted += row.FractionSum
	}

	// Every option appears in the results, zero-vote options included,
	// in the agenda's display order.
	for _, option := range item.Options {
		result := OptionResult{
			OptionID:     option.ID,
			OptionText:   option.OptionText,
			DisplayOrder: option.DisplayOrder,
		}
		if row, ok := tallies[option.ID]; ok {
			result.VotesCount = row.VotesCount
			result.FractionSum = row.FractionSum
			if results.TotalFractionVoted > 0 {
				result.Percentage = row.FractionSum / results.TotalFractionVoted * 100
			}
		}
		results.Options = append(results.Options, result)
	}

	err = db.Model(&voting.Vote{}).
		Where("agenda_id = ? AND is_valid = ?", agendaID, false).
		Count(&results.InvalidatedCount).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count invalidated votes: %w", err)
	}

	return results, nil
}
