package tablestorage

import (
	"context"
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

// AzureTable is backed by Azure Table Storage (or Azurite).
type AzureTable struct {
	name   string
	client *aztables.Client
}

func NewAzureTable(ctx context.Context, connectionString, tableName string, create bool) (*AzureTable, error) {
	svc, err := aztables.NewServiceClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, err
	}
	t := &AzureTable{name: tableName, client: svc.NewClient(tableName)}
	if create {
		if _, err := t.client.CreateTable(ctx, nil); err != nil {
			var re *azcore.ResponseError
			if !errors.As(err, &re) || re.StatusCode != http.StatusConflict {
				return nil, fromAzure(err)
			}
		}
	}
	return t, nil
}

func (t *AzureTable) Name() string { return t.name }

// WithClientRequestID stamps table calls made with ctx with the caller's
// request id, so storage analytics logs can be joined with ours.
func WithClientRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	h := http.Header{}
	h.Set("x-ms-client-request-id", id)
	return policy.WithHTTPHeader(ctx, h)
}

func (t *AzureTable) InsertOrMerge(ctx context.Context, entity any) error {
	b, err := codec.Marshal(entity)
	if err != nil {
		return err
	}
	_, err = t.client.UpsertEntity(ctx, b, &aztables.UpsertEntityOptions{
		UpdateMode: aztables.UpdateModeMerge,
	})
	return fromAzure(err)
}

func (t *AzureTable) Delete(ctx context.Context, pk, rk string) error {
	_, err := t.client.DeleteEntity(ctx, pk, rk, nil)
	return fromAzure(err)
}

func (t *AzureTable) Get(ctx context.Context, pk, rk string) ([]byte, error) {
	resp, err := t.client.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		return nil, fromAzure(err)
	}
	return resp.Value, nil
}

func (t *AzureTable) List(ctx context.Context, q Query) (Page, error) {
	opts := &aztables.ListEntitiesOptions{}
	if f := q.Filter.String(); f != "" {
		opts.Filter = to.Ptr(f)
	}
	if q.Top > 0 {
		opts.Top = to.Ptr(int32(min(q.Top, DefaultPageSize)))
	}
	if q.Continuation != "" {
		pk, rk, err := decodeContinuation(q.Continuation)
		if err != nil {
			return Page{}, err
		}
		opts.NextPartitionKey = to.Ptr(pk)
		if rk != "" {
			opts.NextRowKey = to.Ptr(rk)
		}
	}

	pager := t.client.NewListEntitiesPager(opts)
	if !pager.More() {
		return Page{}, nil
	}
	resp, err := pager.NextPage(ctx)
	if err != nil {
		return Page{}, fromAzure(err)
	}
	page := Page{Entities: resp.Entities}
	if resp.NextPartitionKey != nil {
		rk := ""
		if resp.NextRowKey != nil {
			rk = *resp.NextRowKey
		}
		page.Next = encodeContinuation(*resp.NextPartitionKey, rk)
	}
	return page, nil
}

// fromAzure maps SDK response errors into *Error; anything else (transport,
// context) passes through untouched.
func fromAzure(err error) error {
	if err == nil {
		return nil
	}
	var re *azcore.ResponseError
	if !errors.As(err, &re) {
		return err
	}
	code := re.ErrorCode
	if code == "" {
		code = http.StatusText(re.StatusCode)
	}
	return &Error{Code: code, StatusCode: re.StatusCode, Message: err.Error(), Err: err}
}
