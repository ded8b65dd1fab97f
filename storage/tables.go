package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
	"github.com/sekyikins/AI-Scheduler-Project/store"
)

const (
	edmInt64 = "Edm.Int64"

	// maxConflictRetries bounds the read-modify-write loop on etag conflicts.
	maxConflictRetries = 5
)

// TableRetryOptions is the retry policy used for Azure Table Storage calls.
var TableRetryOptions = policy.RetryOptions{
	MaxRetries:    3,
	TryTimeout:    time.Minute * 3,
	RetryDelay:    time.Second * 1,
	MaxRetryDelay: time.Second * 15,
	StatusCodes:   []int{408, 429, 500, 502, 503, 504},
}

type tableKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type taskEntity struct {
	tableKeys
	Title             string  `json:"Title"`
	Description       string  `json:"Description"`
	Priority          string  `json:"Priority"`
	Status            string  `json:"Status"`
	DueDate           *int64  `json:"DueDate,omitempty,string"`
	DueDateType       *string `json:"DueDate@odata.type,omitempty"`
	Tags              string  `json:"Tags"`
	EstimatedDuration *int    `json:"EstimatedDuration,omitempty"`
	ActualDuration    *int    `json:"ActualDuration,omitempty"`
	AIGenerated       bool    `json:"AIGenerated"`
	UserID            string  `json:"UserID"`
	CreatedAt         int64   `json:"CreatedAt,string"`
	CreatedAtType     string  `json:"CreatedAt@odata.type"`
	UpdatedAt         int64   `json:"UpdatedAt,string"`
	UpdatedAtType     string  `json:"UpdatedAt@odata.type"`
}

// TableAccess stores tasks in an Azure table, one partition per owner.
type TableAccess struct {
	table     *aztables.Client
	partition string
}

// NewTableAccess connects to the table named table. Tasks are written to the
// partition of userID.
func NewTableAccess(connStr, table, userID string) (*TableAccess, error) {
	opts := aztables.ClientOptions{ClientOptions: azcore.ClientOptions{Retry: TableRetryOptions}}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TableAccess{table: svc.NewClient(table), partition: userID}, nil
}

func (s *TableAccess) ListTasks(ctx context.Context, f store.Filter) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + s.partition + "'"
	if f.Status != nil {
		filter += " and Status eq '" + string(*f.Status) + "'"
	}
	if f.Priority != nil {
		filter += " and Priority eq '" + string(*f.Priority) + "'"
	}
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, tableError(err)
		}
		for _, raw := range resp.Entities {
			t, err := decodeTaskEntity(raw)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	// Rows come back in RowKey order; keep insertion order instead.
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks, nil
}

func (s *TableAccess) CreateTask(ctx context.Context, userID string, draft domain.TaskCreate) (domain.Task, error) {
	t := draft.NewTask(uuid.NewString(), userID, domain.Now())
	payload, err := encodeTaskEntity(s.partition, t)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.table.AddEntity(ctx, payload, nil); err != nil {
		return domain.Task{}, tableError(err)
	}
	return t, nil
}

// UpdateTask reads the entity, applies the update and writes it back guarded
// by the etag, retrying when another writer got there first.
func (s *TableAccess) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	for attempt := 0; ; attempt++ {
		resp, err := s.table.GetEntity(ctx, s.partition, id, nil)
		if err != nil {
			return domain.Task{}, notFoundOr(tableError(err), id)
		}
		current, err := decodeTaskEntity(resp.Value)
		if err != nil {
			return domain.Task{}, err
		}
		t := upd.Apply(current, domain.Now())
		payload, err := encodeTaskEntity(s.partition, t)
		if err != nil {
			return domain.Task{}, err
		}
		etag := resp.ETag
		_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeReplace})
		if err == nil {
			return t, nil
		}
		err = notFoundOr(tableError(err), id)
		if !errors.Is(err, domain.ErrConcurrencyConflict) || attempt >= maxConflictRetries {
			return domain.Task{}, err
		}
	}
}

func (s *TableAccess) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.table.DeleteEntity(ctx, s.partition, id, nil); err != nil {
		return notFoundOr(tableError(err), id)
	}
	return nil
}

// BulkUpdateTasks updates entities one by one and skips unknown ids. A failure
// part way through leaves earlier items written.
func (s *TableAccess) BulkUpdateTasks(ctx context.Context, items []domain.BulkUpdateItem) ([]domain.Task, error) {
	out := []domain.Task{}
	for _, it := range items {
		t, err := s.UpdateTask(ctx, it.ID, it.Updates)
		if domain.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// EnsureTable creates the table when it does not exist yet.
func (s *TableAccess) EnsureTable(ctx context.Context) error {
	_, err := s.table.CreateTable(ctx, nil)
	var re *azcore.ResponseError
	if errors.As(err, &re) && re.StatusCode == 409 {
		return nil
	}
	return err
}

func encodeTaskEntity(partition string, t domain.Task) ([]byte, error) {
	tags, err := sonic.MarshalString(t.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	ent := taskEntity{
		tableKeys:         tableKeys{PartitionKey: partition, RowKey: t.ID},
		Title:             t.Title,
		Description:       t.Description,
		Priority:          string(t.Priority),
		Status:            string(t.Status),
		Tags:              tags,
		EstimatedDuration: t.EstimatedDuration,
		ActualDuration:    t.ActualDuration,
		AIGenerated:       t.AIGenerated,
		UserID:            t.UserID,
		CreatedAt:         t.CreatedAt.UnixNano(),
		CreatedAtType:     edmInt64,
		UpdatedAt:         t.UpdatedAt.UnixNano(),
		UpdatedAtType:     edmInt64,
	}
	if t.DueDate != nil {
		due := t.DueDate.UnixNano()
		typ := edmInt64
		ent.DueDate = &due
		ent.DueDateType = &typ
	}
	return sonic.Marshal(ent)
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, fmt.Errorf("decode task entity: %w", err)
	}
	t := domain.Task{
		ID:                ent.RowKey,
		Title:             ent.Title,
		Description:       ent.Description,
		Priority:          domain.Priority(ent.Priority),
		Status:            domain.Status(ent.Status),
		Tags:              []string{},
		EstimatedDuration: ent.EstimatedDuration,
		ActualDuration:    ent.ActualDuration,
		AIGenerated:       ent.AIGenerated,
		UserID:            ent.UserID,
		CreatedAt:         time.Unix(0, ent.CreatedAt).UTC(),
		UpdatedAt:         time.Unix(0, ent.UpdatedAt).UTC(),
	}
	if ent.Tags != "" {
		if err := sonic.UnmarshalString(ent.Tags, &t.Tags); err != nil {
			return domain.Task{}, fmt.Errorf("decode tags of %s: %w", ent.RowKey, err)
		}
		if t.Tags == nil {
			t.Tags = []string{}
		}
	}
	if ent.DueDate != nil {
		due := time.Unix(0, *ent.DueDate).UTC()
		t.DueDate = &due
	}
	return t, nil
}

// tableError maps etag mismatches onto domain.ErrConcurrencyConflict.
func tableError(err error) error {
	var re *azcore.ResponseError
	if errors.As(err, &re) && re.StatusCode == 412 {
		return fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, err)
	}
	return err
}

func notFoundOr(err error, id string) error {
	var re *azcore.ResponseError
	if errors.As(err, &re) && re.StatusCode == 404 {
		return &domain.NotFoundError{ID: id}
	}
	return err
}
