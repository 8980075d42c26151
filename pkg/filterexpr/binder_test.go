package filterexpr

import (
	"strings"
	"testing"
	"time"
)

type jobStatus string

type listJobsParams struct {
	Status        *string
	Statuses      []jobStatus
	Kind          *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time

	PrimaryKey    string
	PrimaryDesc   bool
	SecondaryKey  string
	SecondaryDesc bool
}

type listRequest struct {
	filter  string
	orderBy string
}

func (r listRequest) GetFilter() string  { return r.filter }
func (r listRequest) GetOrderBy() string { return r.orderBy }

var jobsSchema = ResourceSchema{
	Filter: map[string]FilterField{
		"status": {
			Kind: KindString,
			Ops:  map[Op]string{OpEQ: "Status", OpIN: "Statuses"},
		},
		"kind": {
			Kind: KindString,
			Ops:  map[Op]string{OpEQ: "Kind"},
		},
		"created_at": {
			Kind: KindTimestamp,
			Ops:  map[Op]string{OpGTE: "CreatedAfter", OpLTE: "CreatedBefore"},
		},
	},
	Order: OrderSchema{
		DefaultPrimary:     "created_at",
		DefaultPrimaryDesc: true,
		FallbackKey:        "id",
		Fields: map[string]OrderField{
			"created_at": {Expr: "created_at"},
			"id":         {Expr: "id"},
		},
	},
}

func TestBind_Conjunction(t *testing.T) {
	var params listJobsParams
	req := listRequest{filter: "kind == 'export' && status in ['queued', 'failed'] && created_at >= timestamp('2025-01-01T00:00:00Z')"}

	if err := Bind(req, &params, jobsSchema); err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}
	if params.Kind == nil || *params.Kind != "export" {
		t.Fatalf("expected Kind export, got %v", params.Kind)
	}
	if len(params.Statuses) != 2 || params.Statuses[0] != "queued" || params.Statuses[1] != "failed" {
		t.Fatalf("unexpected Statuses %v", params.Statuses)
	}
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if params.CreatedAfter == nil || !params.CreatedAfter.Equal(want) {
		t.Fatalf("expected CreatedAfter %v, got %v", want, params.CreatedAfter)
	}
	if params.CreatedBefore != nil {
		t.Fatalf("expected CreatedBefore to stay nil")
	}
}

func TestBind_DefaultOrder(t *testing.T) {
	var params listJobsParams
	if err := Bind(listRequest{}, &params, jobsSchema); err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}
	if params.PrimaryKey != "created_at" || !params.PrimaryDesc {
		t.Fatalf("unexpected primary order %q desc=%v", params.PrimaryKey, params.PrimaryDesc)
	}
	if params.SecondaryKey != "id" || params.SecondaryDesc {
		t.Fatalf("unexpected secondary order %q desc=%v", params.SecondaryKey, params.SecondaryDesc)
	}
}

func TestBind_ExplicitOrder(t *testing.T) {
	var params listJobsParams
	if err := Bind(listRequest{orderBy: "created_at asc"}, &params, jobsSchema); err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}
	if params.PrimaryKey != "created_at" || params.PrimaryDesc {
		t.Fatalf("unexpected primary order %q desc=%v", params.PrimaryKey, params.PrimaryDesc)
	}
}

func TestBind_Rejects(t *testing.T) {
	cases := []struct {
		name    string
		req     listRequest
		wantErr string
	}{
		{name: "or", req: listRequest{filter: "kind == 'export' || kind == 'import'"}, wantErr: "only AND"},
		{name: "unknown field", req: listRequest{filter: "user_id == 'x'"}, wantErr: "not allowed"},
		{name: "operator not allowed", req: listRequest{filter: "kind in ['export']"}, wantErr: "not allowed"},
		{name: "bad timestamp", req: listRequest{filter: "created_at >= timestamp('yesterday')"}, wantErr: "RFC3339"},
		{name: "unknown order key", req: listRequest{orderBy: "status"}, wantErr: "cannot be used"},
		{name: "bad direction", req: listRequest{orderBy: "created_at sideways"}, wantErr: "invalid order segment"},
		{name: "too many keys", req: listRequest{orderBy: "created_at, id, created_at"}, wantErr: "at most two"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var params listJobsParams
			err := Bind(tc.req, &params, jobsSchema)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
