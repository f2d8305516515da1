package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rei1007/daigakuhai-support/internal/refdata"
)

// RefDataRepo serves the roster and script from Postgres. When the tables
// hold no rows yet it falls back to the built-in sample data, so a freshly
// provisioned database still yields a working overlay.
type RefDataRepo struct {
	pool *pgxpool.Pool
}

func NewRefDataRepo(pool *pgxpool.Pool) *RefDataRepo {
	return &RefDataRepo{pool: pool}
}

func (r *RefDataRepo) Bundle(ctx context.Context) (refdata.Bundle, error) {
	teams, err := r.loadTeams(ctx)
	if err != nil {
		return refdata.Bundle{}, err
	}

	script, err := r.loadScript(ctx)
	if err != nil {
		return refdata.Bundle{}, err
	}

	if len(teams) == 0 && len(script) == 0 {
		slog.Debug("Reference-data tables empty, serving built-in defaults")
		return refdata.Defaults(), nil
	}

	return refdata.Bundle{TeamsData: teams, ScriptData: script}, nil
}

func (r *RefDataRepo) loadTeams(ctx context.Context) ([]refdata.Team, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, university, team_name, comment, team_info, player_info,
		       circle_name, circle_info,
		       p1_name, p1_xp, p1_weapons,
		       p2_name, p2_xp, p2_weapons,
		       p3_name, p3_xp, p3_weapons,
		       p4_name, p4_xp, p4_weapons
		FROM teams
		ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	teams, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (refdata.Team, error) {
		var t refdata.Team
		err := row.Scan(
			&t.ID, &t.University, &t.TeamName, &t.Comment, &t.TeamInfo, &t.PlayerInfo,
			&t.CircleName, &t.CircleInfo,
			&t.P1Name, &t.P1XP, &t.P1Weapons,
			&t.P2Name, &t.P2XP, &t.P2Weapons,
			&t.P3Name, &t.P3XP, &t.P3Weapons,
			&t.P4Name, &t.P4XP, &t.P4Weapons,
		)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan teams: %w", err)
	}
	return teams, nil
}

func (r *RefDataRepo) loadScript(ctx context.Context) ([]refdata.ScriptLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT speaker, line
		FROM script_lines
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query script lines: %w", err)
	}
	defer rows.Close()

	script, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (refdata.ScriptLine, error) {
		var l refdata.ScriptLine
		err := row.Scan(&l.Speaker, &l.Line)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan script lines: %w", err)
	}
	return script, nil
}
