package repository

// Every query below filters on account_id except the two account discovery
// queries the driver uses to decide which accounts to scope into.
const automationColumns = `id, account_id, type, related_id, status, run_at, payload, attempts, last_attempt, result, created_at, updated_at`

const (
	findByKeyQuery = `
		SELECT ` + automationColumns + `
		FROM automations
		WHERE account_id = $1 AND type = $2 AND related_id IS NOT DISTINCT FROM $3 AND run_at = $4`

	insertPendingQuery = `
		INSERT INTO automations (account_id, type, related_id, status, run_at, payload, attempts)
		VALUES ($1, $2, $3, 'pending', $4, $5, 0)
		ON CONFLICT ON CONSTRAINT automations_dedup DO NOTHING
		RETURNING ` + automationColumns

	insertHistoryQuery = `
		INSERT INTO automation_history (automation_id, account_id, status, message)
		VALUES ($1, $2, $3, $4)`

	getByIDQuery = `
		SELECT ` + automationColumns + `
		FROM automations
		WHERE account_id = $1 AND id = $2`

	listDueQuery = `
		SELECT ` + automationColumns + `
		FROM automations
		WHERE account_id = $1 AND status = 'pending' AND run_at <= $2
		ORDER BY run_at ASC, created_at ASC
		LIMIT $3`

	claimQuery = `
		UPDATE automations
		SET status = 'processing', attempts = attempts + 1, last_attempt = $3, updated_at = $3
		WHERE account_id = $1 AND id = $2 AND status = 'pending'
		RETURNING ` + automationColumns

	finishQuery = `
		UPDATE automations
		SET status = $3, result = COALESCE($4, result), updated_at = now()
		WHERE account_id = $1 AND id = $2 AND status IN ('pending', 'processing')
		RETURNING type`

	currentStatusQuery = `
		SELECT status
		FROM automations
		WHERE account_id = $1 AND id = $2`

	listWithHistoryQuery = `
		SELECT ` + automationColumns + `
		FROM automations
		WHERE account_id = $1 AND ($2::text IS NULL OR status = $2::text)
		ORDER BY run_at ASC, created_at ASC
		LIMIT $3`

	historyForItemsQuery = `
		SELECT id, automation_id, status, message, created_at
		FROM automation_history
		WHERE account_id = $1 AND automation_id = ANY($2::uuid[])
		ORDER BY created_at ASC, id ASC`

	reapStuckQuery = `
		UPDATE automations
		SET status = 'failed', result = jsonb_build_object('error', $3::text), updated_at = now()
		WHERE account_id = $1 AND status = 'processing' AND last_attempt < $2
		RETURNING id, type`

	listAccountsWithDueWorkQuery = `
		SELECT account_id
		FROM automations
		WHERE status = 'pending' AND run_at <= $1
		GROUP BY account_id
		ORDER BY MIN(run_at) ASC
		LIMIT $2`

	listAccountsWithStuckWorkQuery = `
		SELECT account_id
		FROM automations
		WHERE status = 'processing' AND last_attempt < $1
		GROUP BY account_id
		ORDER BY MIN(last_attempt) ASC
		LIMIT $2`

	getSettingsOverridesQuery = `
		SELECT overrides
		FROM automation_settings
		WHERE account_id = $1`

	mergeSettingsOverridesQuery = `
		INSERT INTO automation_settings (account_id, overrides, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (account_id) DO UPDATE
		SET overrides = automation_settings.overrides || EXCLUDED.overrides, updated_at = now()
		RETURNING overrides`
)
