package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sgt/sgt-api/internal/models"
)

var expedienteDetailColumns = []string{
	"id", "code", "client_id", "tramite_type_id", "current_step", "total_steps", "state", "priority",
	"start_date", "deadline", "remarks", "assigned_to", "completed_at", "created_at", "updated_at",
	"client_name", "client_cuit", "tramite_type_code", "tramite_type_name", "agency",
}

func TestExpedienteRepositoryListUrgencyWindow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExpedienteRepository(db)

	today := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND e.state <> 'completado' AND e.deadline >= $1::date AND e.deadline <= $2::date ORDER BY e.deadline ASC, e.code ASC LIMIT 20 OFFSET 0")).
		WithArgs("2025-03-10", "2025-03-13").
		WillReturnRows(sqlmock.NewRows(expedienteDetailColumns).
			AddRow("e1", "ANMAT-2025-abc123", "c1", "t1", 1, 3, "en_proceso", "alta",
				today.AddDate(0, 0, -20), today.AddDate(0, 0, 2), "", nil, nil, now, now,
				"Lacteos SA", "30712345671", "ANMAT-RNPA", "RNPA", "ANMAT"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM expedientes e")).
		WithArgs("2025-03-10", "2025-03-13").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.ExpedienteFilter{Urgency: "warning", Today: today})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.AgencyANMAT, items[0].Agency)
	assert.Equal(t, models.ExpedienteStateInProgress, items[0].State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpedienteRepositoryListIgnoresUnknownUrgencyAndSort(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExpedienteRepository(db)

	state := models.ExpedienteStateOverdue
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND e.state = $1 ORDER BY e.deadline DESC, e.code ASC LIMIT 20 OFFSET 0")).
		WithArgs(state).
		WillReturnRows(sqlmock.NewRows(expedienteDetailColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).WithArgs(state).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.ExpedienteFilter{State: &state, Urgency: "purple", SortBy: "drop table", SortOrder: "desc"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpedienteRepositoryCreateSeedsChecklist(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExpedienteRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO expedientes")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	exp := &models.Expediente{Code: "INAL-2025-000001", ClientID: "c1", TramiteTypeID: "t1", TotalSteps: 2,
		State: models.ExpedienteStateInitiated, Priority: models.PriorityNormal}
	docs := []models.Document{
		{Name: "Rotulo", Required: true, State: models.DocumentStatePending},
		{Name: "Monografia", Required: true, State: models.DocumentStatePending},
	}
	require.NoError(t, repo.Create(context.Background(), exp, docs))
	assert.NotEmpty(t, exp.ID)
	assert.Equal(t, exp.ID, docs[0].ExpedienteID)
	assert.NotEmpty(t, docs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpedienteRepositoryCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExpedienteRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO expedientes")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Expediente{TotalSteps: 1}, []models.Document{{Name: "Poder"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpedienteRepositoryMarkOverdue(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExpedienteRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE expedientes SET state = 'vencido'")).
		WithArgs("2025-03-10", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("e1").AddRow("e2"))

	ids, err := repo.MarkOverdue(context.Background(), time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpedienteRepositoryCountByUrgency(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExpedienteRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHEN e.deadline <= $1::date + $2::int THEN 'warning'")).
		WithArgs("2025-03-10", 3).
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("overdue", 2).AddRow("warning", 1))

	rows, err := repo.CountByUrgency(context.Background(), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []models.ExpedienteStateCount{{Key: "overdue", Count: 2}, {Key: "warning", Count: 1}}, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpedienteRepositoryUpcoming(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExpedienteRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND e.deadline >= $1::date AND e.deadline <= $1::date + $2::int")).
		WithArgs("2025-03-10", 15, 5).
		WillReturnRows(sqlmock.NewRows(expedienteDetailColumns))

	items, err := repo.Upcoming(context.Background(), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), 15, 5)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
