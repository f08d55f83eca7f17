package internal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// outcomeJobArgs is the job payload a river worker picks up downstream.
type outcomeJobArgs struct {
	Notification
	Topic string `json:"topic"`

	kind string
}

func (a outcomeJobArgs) Kind() string { return a.kind }

// riverPublisher inserts one job per notification. The client is insert
// only; workers run in a separate process against the same database.
type riverPublisher struct {
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
	cfg    RiverConfig
}

func newRiverPublisher(ctx context.Context, cfg RiverConfig) (*riverPublisher, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("river dsn is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &riverPublisher{pool: pool, client: client, cfg: cfg}, nil
}

func (p *riverPublisher) Publish(ctx context.Context, topic string, note Notification) error {
	kind := p.cfg.Kind
	if kind == "" {
		kind = "pipehooks.outcome"
	}
	_, err := p.client.Insert(ctx, outcomeJobArgs{Notification: note, Topic: topic, kind: kind}, &river.InsertOpts{
		Queue:       p.cfg.Queue,
		MaxAttempts: p.cfg.MaxAttempts,
		Priority:    p.cfg.Priority,
		Tags:        p.cfg.Tags,
	})
	return err
}

func (p *riverPublisher) PublishForDrivers(ctx context.Context, topic string, note Notification, drivers []string) error {
	return p.Publish(ctx, topic, note)
}

func (p *riverPublisher) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
