package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/rules"
)

const dateLayout = "2006-01-02"

const expedienteDetailSelect = `SELECT e.id, e.code, e.client_id, e.tramite_type_id, e.current_step, e.total_steps, e.state, e.priority,
e.start_date, e.deadline, e.remarks, e.assigned_to, e.completed_at, e.created_at, e.updated_at,
c.business_name AS client_name, c.cuit AS client_cuit, t.code AS tramite_type_code, t.name AS tramite_type_name, t.agency
FROM expedientes e
JOIN clients c ON c.id = e.client_id
JOIN tramite_types t ON t.id = e.tramite_type_id`

// Completed cases leave the semáforo; overdue ones still count as open.
const openStatesCondition = `e.state <> 'completado'`

const priorityRank = `CASE e.priority WHEN 'urgente' THEN 3 WHEN 'alta' THEN 2 ELSE 1 END`

// ExpedienteRepository persists expedientes and seeds their checklists.
type ExpedienteRepository struct {
	db *sqlx.DB
}

// NewExpedienteRepository constructs the repository.
func NewExpedienteRepository(db *sqlx.DB) *ExpedienteRepository {
	return &ExpedienteRepository{db: db}
}

// List returns expedientes joined with client and type labels.
func (r *ExpedienteRepository) List(ctx context.Context, filter models.ExpedienteFilter) ([]models.ExpedienteDetail, int, error) {
	var b conditionBuilder
	if filter.Search != "" {
		b.add("(LOWER(e.code) LIKE ? OR LOWER(c.business_name) LIKE ? OR c.cuit LIKE ?)", "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.State != nil {
		b.add("e.state = ?", *filter.State)
	}
	if filter.Priority != nil {
		b.add("e.priority = ?", *filter.Priority)
	}
	if filter.ClientID != "" {
		b.add("e.client_id = ?", filter.ClientID)
	}
	if filter.TramiteTypeID != "" {
		b.add("e.tramite_type_id = ?", filter.TramiteTypeID)
	}
	if filter.Agency != nil {
		b.add("t.agency = ?", *filter.Agency)
	}
	if filter.AssignedTo != "" {
		b.add("e.assigned_to = ?", filter.AssignedTo)
	}
	if urgency := rules.Urgency(filter.Urgency); urgency.Valid() {
		b.conditions = append(b.conditions, openStatesCondition)
		from, to := rules.UrgencyWindow(urgency, filter.Today)
		if from != nil {
			b.add("e.deadline >= ?::date", from.Format(dateLayout))
		}
		if to != nil {
			b.add("e.deadline <= ?::date", to.Format(dateLayout))
		}
	}
	baseQuery := b.where(`
WHERE 1=1`)

	order := "e.deadline ASC"
	if filter.SortBy != "" {
		order = orderBy(filter.SortBy, filter.SortOrder, map[string]string{
			"code":       "e.code",
			"deadline":   "e.deadline",
			"start_date": "e.start_date",
			"priority":   priorityRank,
			"state":      "e.state",
			"created_at": "e.created_at",
		}, "deadline")
	}
	limit, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s %s ORDER BY %s, e.code ASC LIMIT %d OFFSET %d", expedienteDetailSelect, baseQuery, order, limit, offset)
	var items []models.ExpedienteDetail
	if err := r.db.SelectContext(ctx, &items, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list expedientes: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM expedientes e
JOIN clients c ON c.id = e.client_id
JOIN tramite_types t ON t.id = e.tramite_type_id ` + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count expedientes: %w", err)
	}
	return items, total, nil
}

// FindByID returns a single expediente with its labels.
func (r *ExpedienteRepository) FindByID(ctx context.Context, id string) (*models.ExpedienteDetail, error) {
	query := expedienteDetailSelect + ` WHERE e.id = $1`
	var item models.ExpedienteDetail
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get expediente: %w", err)
	}
	return &item, nil
}

// CodeExists reports whether an expediente already uses code.
func (r *ExpedienteRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM expedientes WHERE code = $1)`, code); err != nil {
		return false, fmt.Errorf("check expediente code: %w", err)
	}
	return exists, nil
}

// Create inserts the expediente and its initial document checklist in one
// transaction.
func (r *ExpedienteRepository) Create(ctx context.Context, exp *models.Expediente, docs []models.Document) (err error) {
	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	exp.CreatedAt = now
	exp.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create expediente: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertExpediente = `INSERT INTO expedientes (id, code, client_id, tramite_type_id, current_step, total_steps, state, priority,
start_date, deadline, remarks, assigned_to, completed_at, created_at, updated_at)
VALUES (:id, :code, :client_id, :tramite_type_id, :current_step, :total_steps, :state, :priority,
:start_date, :deadline, :remarks, :assigned_to, :completed_at, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertExpediente, exp); err != nil {
		return fmt.Errorf("create expediente: %w", err)
	}

	for i := range docs {
		docs[i].ExpedienteID = exp.ID
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		docs[i].CreatedAt = now
		docs[i].UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, insertDocumentQuery, &docs[i]); err != nil {
			return fmt.Errorf("seed document %q: %w", docs[i].Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create expediente: %w", err)
	}
	return nil
}

// Update persists the editable fields of an expediente.
func (r *ExpedienteRepository) Update(ctx context.Context, exp *models.Expediente) error {
	exp.UpdatedAt = time.Now().UTC()
	const query = `UPDATE expedientes SET priority = :priority, deadline = :deadline, remarks = :remarks,
assigned_to = :assigned_to, state = :state, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exp); err != nil {
		return fmt.Errorf("update expediente: %w", err)
	}
	return nil
}

// UpdateProgress persists the step counter and lifecycle state.
func (r *ExpedienteRepository) UpdateProgress(ctx context.Context, exp *models.Expediente) error {
	exp.UpdatedAt = time.Now().UTC()
	const query = `UPDATE expedientes SET current_step = :current_step, state = :state, completed_at = :completed_at,
updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exp); err != nil {
		return fmt.Errorf("update expediente progress: %w", err)
	}
	return nil
}

// MarkOverdue flags open expedientes whose deadline is before today as
// vencido and returns the affected ids.
func (r *ExpedienteRepository) MarkOverdue(ctx context.Context, today time.Time) ([]string, error) {
	const query = `UPDATE expedientes SET state = 'vencido', updated_at = $2
WHERE state IN ('iniciado', 'en_proceso', 'en_observacion') AND deadline < $1::date
RETURNING id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, today.Format(dateLayout), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("mark overdue expedientes: %w", err)
	}
	return ids, nil
}

// CountByState groups every expediente by lifecycle state.
func (r *ExpedienteRepository) CountByState(ctx context.Context) ([]models.ExpedienteStateCount, error) {
	const query = `SELECT e.state AS key, COUNT(*) AS count FROM expedientes e GROUP BY e.state ORDER BY e.state`
	var rows []models.ExpedienteStateCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count expedientes by state: %w", err)
	}
	return rows, nil
}

// CountByAgency groups open expedientes by issuing agency.
func (r *ExpedienteRepository) CountByAgency(ctx context.Context) ([]models.ExpedienteStateCount, error) {
	query := `SELECT t.agency AS key, COUNT(*) AS count FROM expedientes e
JOIN tramite_types t ON t.id = e.tramite_type_id
WHERE ` + openStatesCondition + ` GROUP BY t.agency ORDER BY count DESC, t.agency`
	var rows []models.ExpedienteStateCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count expedientes by agency: %w", err)
	}
	return rows, nil
}

// CountByUrgency buckets open expedientes into the semáforo levels using the
// same thresholds as rules.ClassifyDays.
func (r *ExpedienteRepository) CountByUrgency(ctx context.Context, today time.Time) ([]models.ExpedienteStateCount, error) {
	query := `SELECT CASE
    WHEN e.deadline < $1::date THEN 'overdue'
    WHEN e.deadline <= $1::date + $2::int THEN 'warning'
    ELSE 'on_track'
END AS key, COUNT(*) AS count
FROM expedientes e
WHERE ` + openStatesCondition + `
GROUP BY key`
	var rows []models.ExpedienteStateCount
	if err := r.db.SelectContext(ctx, &rows, query, today.Format(dateLayout), rules.WarningWindowDays); err != nil {
		return nil, fmt.Errorf("count expedientes by urgency: %w", err)
	}
	return rows, nil
}

// Upcoming returns open expedientes due between today and today+horizonDays.
func (r *ExpedienteRepository) Upcoming(ctx context.Context, today time.Time, horizonDays, limit int) ([]models.ExpedienteDetail, error) {
	if limit <= 0 {
		limit = 10
	}
	query := expedienteDetailSelect + `
WHERE ` + openStatesCondition + ` AND e.deadline >= $1::date AND e.deadline <= $1::date + $2::int
ORDER BY e.deadline ASC, ` + priorityRank + ` DESC, e.code ASC
LIMIT $3`
	var items []models.ExpedienteDetail
	if err := r.db.SelectContext(ctx, &items, query, today.Format(dateLayout), horizonDays, limit); err != nil {
		return nil, fmt.Errorf("list upcoming expedientes: %w", err)
	}
	return items, nil
}
