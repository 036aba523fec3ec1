package queue

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Manager handles NATS connection and messaging
type Manager struct {
	conn    *nats.Conn
	url     string
	options []nats.Option
}

// NewManager creates a new NATS manager
func NewManager(natsURL string) (*Manager, error) {
	options := []nats.Option{
		nats.Name("Tobacco APS"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Println("NATS connection closed")
		}),
	}

	// Connect to NATS
	conn, err := nats.Connect(natsURL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Printf("Connected to NATS at %s", natsURL)

	return &Manager{
		conn:    conn,
		url:     natsURL,
		options: options,
	}, nil
}

// Close closes the NATS connection
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}

// Conn returns the NATS connection
func (m *Manager) Conn() *nats.Conn {
	return m.conn
}

// Publish publishes a message to a subject
func (m *Manager) Publish(subject string, data []byte) error {
	return m.conn.Publish(subject, data)
}

// Subscribe subscribes to a subject with a handler
func (m *Manager) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return m.conn.Subscribe(subject, handler)
}

// QueueSubscribe creates a queue subscriber (load balanced across workers)
func (m *Manager) QueueSubscribe(subject, queue string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return m.conn.QueueSubscribe(subject, queue, handler)
}

// Request sends a request and waits for a response
func (m *Manager) Request(subject string, data []byte, timeout time.Duration) (*nats.Msg, error) {
	return m.conn.Request(subject, data, timeout)
}

// NATS Subject Patterns

const (
	// SubjectTaskStart carries a StartTask request for the queue-group
	// worker pool to pick up.
	SubjectTaskStart = "scheduling.task.start"

	// SubjectTaskCancel is a wildcard broadcast (not queue-grouped) so
	// every worker sees a cancellation regardless of which one owns the
	// task.
	SubjectTaskCancelWildcard = "scheduling.task.cancel.*"
	SubjectTaskCancel         = "scheduling.task.cancel.%s" // scheduling.task.cancel.{taskId}

	SubjectTaskProgress = "scheduling.progress.%s" // scheduling.progress.{taskId}
	SubjectTaskComplete = "scheduling.complete.%s" // scheduling.complete.{taskId}
	SubjectTaskError    = "scheduling.error.%s"    // scheduling.error.{taskId}

	QueueGroupSchedulingWorkers = "scheduling-workers"
)

// GetTaskCancelSubject returns the per-task cancellation broadcast subject.
func GetTaskCancelSubject(taskID string) string {
	return fmt.Sprintf(SubjectTaskCancel, taskID)
}

// GetTaskProgressSubject returns the progress subject for a task.
func GetTaskProgressSubject(taskID string) string {
	return fmt.Sprintf(SubjectTaskProgress, taskID)
}

// GetTaskCompleteSubject returns the completion subject for a task.
func GetTaskCompleteSubject(taskID string) string {
	return fmt.Sprintf(SubjectTaskComplete, taskID)
}

// GetTaskErrorSubject returns the error subject for a task.
func GetTaskErrorSubject(taskID string) string {
	return fmt.Sprintf(SubjectTaskError, taskID)
}
