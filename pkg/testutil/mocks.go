package testutil

import (
	"context"
	"database/sql/driver"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// MockDB is a database.DB speaking the postgres dialect over sqlmock.
type MockDB struct {
	DB   *database.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB returns a sqlmock-backed database closed at the end of the test.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &MockDB{
		DB:   database.Wrap(sqlx.NewDb(conn, config.DriverPostgres), logger.Nop()),
		Mock: mock,
	}
}

// ExpectQuery expects query verbatim, with regexp metacharacters escaped.
func (m *MockDB) ExpectQuery(query string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta(query))
}

// ExpectExec expects statement verbatim, with regexp metacharacters escaped.
func (m *MockDB) ExpectExec(statement string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(statement))
}

// ExpectationsWereMet fails the test if an expected statement never ran.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	assert.NoError(t, m.Mock.ExpectationsWereMet())
}

// MockRows starts a result set with the given columns.
func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// AnyTime matches any time.Time argument, such as updated_at stamps.
type AnyTime struct{}

// Match implements sqlmock.Argument.
func (AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// MockPublisher collects published events in memory. Err, when set, is
// returned from every Publish and nothing is recorded.
type MockPublisher struct {
	Err error

	mu        sync.Mutex
	published []PublishedEvent
}

// PublishedEvent is one recorded Publish call.
type PublishedEvent struct {
	Type    string
	Payload any
}

// NewMockPublisher returns an empty recorder.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records the event.
func (m *MockPublisher) Publish(_ context.Context, eventType string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.published = append(m.published, PublishedEvent{Type: eventType, Payload: payload})
	return nil
}

// EventsOfType returns the recorded events of eventType in publish order.
func (m *MockPublisher) EventsOfType(eventType string) []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []PublishedEvent
	for _, e := range m.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// AssertNoEventsPublished fails the test if anything was recorded.
func (m *MockPublisher) AssertNoEventsPublished(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.published)
}
