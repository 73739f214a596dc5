package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sgt/sgt-api/internal/models"
)

func TestTramiteTypeRepositoryFindByIDDecodesJSONB(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTramiteTypeRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "code", "name", "agency", "description", "sla_days", "validity_months", "steps", "required_documents", "active", "created_at", "updated_at"}).
		AddRow("t1", "ANMAT-RNPA", "Registro Nacional de Producto Alimenticio", "ANMAT", "", 60, 60,
			[]byte(`["Carga","Evaluacion","Emision"]`), []byte(`["Rotulo","Monografia"]`), true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tramite_types WHERE id = $1")).WithArgs("t1").WillReturnRows(rows)

	item, err := repo.FindByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.AgencyANMAT, item.Agency)
	assert.Equal(t, models.StringList{"Carga", "Evaluacion", "Emision"}, item.Steps)
	assert.Len(t, item.RequiredDocuments, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTramiteTypeRepositoryListByAgency(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTramiteTypeRepository(db)

	agency := models.AgencySENASA
	mock.ExpectQuery(regexp.QuoteMeta("FROM tramite_types WHERE 1=1 AND agency = $1 ORDER BY agency ASC, name ASC LIMIT 20 OFFSET 0")).
		WithArgs(agency).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tramite_types WHERE 1=1 AND agency = $1")).
		WithArgs(agency).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	items, total, err := repo.List(context.Background(), models.TramiteTypeFilter{Agency: &agency})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
