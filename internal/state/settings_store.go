package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flexlev/flm/internal/types"
)

// EngineSettings bundles the three mutable settings structs as persisted.
type EngineSettings struct {
	Methodology types.MethodologySettings
	Execution   types.ExecutionSettings
	Incentive   types.IncentiveSettings
}

// SaveEngineSettings saves a new version of engine settings, optionally
// making it the active row for its config name.
func SaveEngineSettings(s EngineSettings, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	methodologyJSON, err := json.Marshal(s.Methodology)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal methodology settings: %w", err)
	}
	executionJSON, err := json.Marshal(s.Execution)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal execution settings: %w", err)
	}
	incentiveJSON, err := json.Marshal(s.Incentive)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal incentive settings: %w", err)
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE engine_settings SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		if _, err = tx.Exec(stmtDeactivate, configName); err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active settings for %s: %w", configName, err)
		}
	}

	stmt := `
		INSERT INTO engine_settings (
			config_name, version, is_active, activated_at, created_at,
			methodology, execution, incentive
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING settings_id;`

	var settingsID int64
	currentTime := time.Now()
	err = tx.QueryRow(stmt,
		configName, version, makeActive, currentTime, currentTime,
		methodologyJSON, executionJSON, incentiveJSON,
	).Scan(&settingsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert engine settings: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Str("config", configName).
		Int("version", version).
		Int64("settings_id", settingsID).
		Bool("active", makeActive).
		Msg("Saved engine settings")
	return settingsID, nil
}

// LoadActiveEngineSettings loads the currently active engine settings row.
func LoadActiveEngineSettings(configName string) (*EngineSettings, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT methodology, execution, incentive
		FROM engine_settings
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	var methodologyJSON, executionJSON, incentiveJSON []byte
	row := DB.QueryRow(query, configName)
	if err := row.Scan(&methodologyJSON, &executionJSON, &incentiveJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active engine settings found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan active engine settings for config '%s': %w", configName, err)
	}

	s := &EngineSettings{}
	if err := json.Unmarshal(methodologyJSON, &s.Methodology); err != nil {
		return nil, fmt.Errorf("failed to unmarshal methodology settings: %w", err)
	}
	if err := json.Unmarshal(executionJSON, &s.Execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution settings: %w", err)
	}
	if err := json.Unmarshal(incentiveJSON, &s.Incentive); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incentive settings: %w", err)
	}

	log.Info().Str("config", configName).Msg("Loaded active engine settings")
	return s, nil
}
