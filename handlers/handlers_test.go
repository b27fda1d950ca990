package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"recon-svc/cache"
	"recon-svc/database"
	"recon-svc/models"
	"recon-svc/push"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

const testSecret = "s3cret"

type memLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]string)}
}

func (m *memLocker) Acquire(_ context.Context, key string, _ time.Duration) (*cache.Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return nil, nil
	}
	token := uuid.NewString()
	m.held[key] = token
	return &cache.Lock{Key: key, Token: token}, nil
}

func (m *memLocker) Release(_ context.Context, lock *cache.Lock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[lock.Key] == lock.Token {
		delete(m.held, lock.Key)
	}
	return nil
}

type capturingPublisher struct {
	events []models.TransactionEvent
}

func (p *capturingPublisher) PublishStateChanged(_ context.Context, event models.TransactionEvent) error {
	p.events = append(p.events, event)
	return nil
}

type handlerFixture struct {
	mock      sqlmock.Sqlmock
	log       *database.EventLog
	orders    *database.OrderTransactionStore
	locker    *memLocker
	publisher *capturingPublisher
	processor *push.Processor
	router    *gin.Engine
}

func setupHandlerTest(t *testing.T) *handlerFixture {
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t)
	f := &handlerFixture{
		mock:      mock,
		log:       database.NewEventLog(db, logger),
		orders:    database.NewOrderTransactionStore(db, logger),
		locker:    newMemLocker(),
		publisher: &capturingPublisher{},
		router:    gin.New(),
	}
	f.processor = push.NewProcessor(testSecret, f.log, f.orders, f.locker, f.publisher, logger)
	return f
}

func orderTransactionRow(status string, canRefund, canCapture, authorized bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "order_id", "amount", "currency", "status", "original_transaction_key",
		"service_name", "reservation_number", "can_refund", "can_capture", "authorized",
		"captured", "refunded", "created_at", "updated_at",
	}).AddRow("OT-1", "ORD-1", "100.00", "EUR", status, "T1",
		"ideal", "", canRefund, canCapture, authorized, false, false, time.Now(), time.Now())
}

func sqlmockRowsCount(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func engineResponseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "order_transaction_id", "transaction_key", "related_transaction_key",
		"status_code", "amount", "amount_credit", "currency", "service_name",
		"transaction_method", "transaction_type", "signature", "push_hash", "raw", "created_at",
	})
}

func addPaymentRow(rows *sqlmock.Rows, id int, key, amount string) *sqlmock.Rows {
	return rows.AddRow(id, "OT-1", key, "", 190, amount, "0", "EUR", "ideal",
		"", "", "sig-"+key, "hash-"+key, []byte(`{}`), time.Now())
}

func addRefundRow(rows *sqlmock.Rows, id int, key, relatedKey, credit string) *sqlmock.Rows {
	return rows.AddRow(id, "OT-1", key, relatedKey, 190, "0", credit, "EUR", "ideal",
		"", "", "sig-"+key, "hash-"+key, []byte(`{}`), time.Now())
}
