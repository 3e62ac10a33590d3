package repository

// Every query filters on account_id. Conditional updates carry the expected
// current status so a concurrent transition cannot be overwritten.
const (
	visitColumns = `id, account_id, job_id, technician_id, status, scheduled_for, start_at, end_at, notes, created_at, updated_at`
	jobColumns   = `id, account_id, number, title, status, technician_id, customer_id, created_at, updated_at`
)

const (
	getVisitQuery = `
		SELECT ` + visitColumns + `
		FROM visits
		WHERE account_id = $1 AND id = $2`

	listVisitsQuery = `
		SELECT ` + visitColumns + `
		FROM visits
		WHERE account_id = $1 AND ($2::uuid IS NULL OR technician_id = $2::uuid)
		ORDER BY scheduled_for ASC NULLS LAST, created_at ASC
		LIMIT $3`

	transitionVisitQuery = `
		UPDATE visits
		SET status = $4,
			start_at = CASE WHEN $4 = 'in_progress' THEN COALESCE(start_at, $5) ELSE start_at END,
			end_at = CASE WHEN $4 IN ('completed', 'cancelled') THEN $5 ELSE end_at END,
			updated_at = $5
		WHERE account_id = $1 AND id = $2 AND status = $3
		RETURNING ` + visitColumns

	getJobQuery = `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE account_id = $1 AND id = $2`

	transitionJobQuery = `
		UPDATE jobs
		SET status = $4, updated_at = $5
		WHERE account_id = $1 AND id = $2 AND status = $3
		RETURNING ` + jobColumns

	// The INSERT ... SELECT form writes nothing when the job is not in the account.
	insertNoteQuery = `
		INSERT INTO job_notes (account_id, job_id, author_id, kind, body, created_at)
		SELECT j.account_id, j.id, $3, $4, $5, $6
		FROM jobs j
		WHERE j.account_id = $1 AND j.id = $2
		RETURNING id, job_id, author_id, kind, body, created_at`

	insertTimeEntryQuery = `
		INSERT INTO job_time_entries (account_id, job_id, technician_id, minutes, description, created_at)
		SELECT j.account_id, j.id, $3, $4, $5, $6
		FROM jobs j
		WHERE j.account_id = $1 AND j.id = $2
		RETURNING id, job_id, technician_id, minutes, description, created_at`

	insertLineItemQuery = `
		INSERT INTO job_line_items (account_id, job_id, description, quantity, unit_price_cents, created_by, created_at)
		SELECT j.account_id, j.id, $3, $4::numeric, $5, $6, $7
		FROM jobs j
		WHERE j.account_id = $1 AND j.id = $2
		RETURNING id, job_id, description, quantity::text, unit_price_cents, created_by, created_at`

	listNotesQuery = `
		SELECT id, job_id, author_id, kind, body, created_at
		FROM job_notes
		WHERE account_id = $1 AND job_id = $2
		ORDER BY created_at ASC`

	listTimeEntriesQuery = `
		SELECT id, job_id, technician_id, minutes, description, created_at
		FROM job_time_entries
		WHERE account_id = $1 AND job_id = $2
		ORDER BY created_at ASC`

	listLineItemsQuery = `
		SELECT id, job_id, description, quantity::text, unit_price_cents, created_by, created_at
		FROM job_line_items
		WHERE account_id = $1 AND job_id = $2
		ORDER BY created_at ASC`
)
