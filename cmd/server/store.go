package main

import (
	"context"
	"fmt"

	"github.com/dkeye/memoboard/internal/adapters/dynamo"
	"github.com/dkeye/memoboard/internal/adapters/mongo"
	"github.com/dkeye/memoboard/internal/app"
	"github.com/dkeye/memoboard/internal/config"
	"github.com/dkeye/memoboard/internal/core"
)

func openStore(ctx context.Context, cfg *config.Config) (core.MemberStore, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return app.NewRegistry(), nil
	case config.DriverMongo:
		s, err := mongo.Open(ctx, cfg.Store.Mongo)
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		return s, nil
	case config.DriverDynamoDB:
		s, err := dynamo.Open(ctx, cfg.Store.DynamoDB)
		if err != nil {
			return nil, fmt.Errorf("open dynamodb store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
