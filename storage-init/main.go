// Command storage-init provisions the task storage: the Azure table and
// event queue when a storage account is configured, and the SQLite schema
// when SQLITE_PATH is set.
package main

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"github.com/sekyikins/AI-Scheduler-Project/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")
	ctx := context.Background()

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	sqlitePath := os.Getenv("SQLITE_PATH")
	if connStr == "" && sqlitePath == "" {
		log.Fatal("nothing to provision: set STORAGE_CONNECTION_STRING or SQLITE_PATH")
	}

	if connStr != "" {
		if table := os.Getenv("TASKS_TABLE"); table != "" {
			// The partition is irrelevant for table creation.
			tables, err := storage.NewTableAccess(connStr, table, "")
			if err != nil {
				log.Fatalf("tables client: %v", err)
			}
			if err := tables.EnsureTable(ctx); err != nil {
				log.Fatalf("create table %s: %v", table, err)
			}
			log.WithField("table", table).Info("table ready")
		}
		if queue := os.Getenv("EVENTS_QUEUE"); queue != "" {
			if err := createQueue(ctx, connStr, queue); err != nil {
				log.Fatalf("create queue %s: %v", queue, err)
			}
			log.WithField("queue", queue).Info("queue ready")
		}
	}

	if sqlitePath != "" {
		db, err := storage.OpenSQLite(sqlitePath)
		if err != nil {
			log.Fatalf("sqlite: %v", err)
		}
		_ = db.Close()
		log.WithField("path", sqlitePath).Info("sqlite schema ready")
	}

	log.Info("storage init complete")
}

func createQueue(ctx context.Context, connStr, name string) error {
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
	if err != nil {
		return err
	}
	_, err = q.Create(ctx, nil)
	var respErr *azcore.ResponseError
	if err != nil && !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
		return err
	}
	return nil
}
