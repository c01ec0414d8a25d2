package auditlog_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	auditlogfeature "github.com/dalemusser/clubhub/internal/app/features/auditlog"
	"github.com/dalemusser/clubhub/internal/app/store/audit"
	"github.com/dalemusser/clubhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeEvents struct {
	got    audit.QueryFilter
	events []audit.Event
	err    error
}

func (f *fakeEvents) Query(_ context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	f.got = filter
	return f.events, f.err
}

func (f *fakeEvents) CountByFilter(context.Context, audit.QueryFilter) (int64, error) {
	return int64(len(f.events)), f.err
}

func (f *fakeEvents) GetBySubject(_ context.Context, subjectID primitive.ObjectID, limit int64) ([]audit.Event, error) {
	f.got = audit.QueryFilter{SubjectID: &subjectID, Limit: limit}
	return f.events, f.err
}

func serve(t *testing.T, ev *fakeEvents, target string) *testutil.ResponseRecorder {
	t.Helper()
	h := auditlogfeature.NewHandler(ev, zap.NewNop())
	rec := testutil.NewRecorder()
	auditlogfeature.Routes(h).ServeHTTP(rec, testutil.NewJSONRequest(t, http.MethodGet, target, nil))
	return rec
}

func TestServeList_Filters(t *testing.T) {
	id := primitive.NewObjectID()
	ev := &fakeEvents{events: []audit.Event{{
		Category:  audit.CategoryPayment,
		EventType: audit.EventPaymentRecorded,
		SubjectID: &id,
		Email:     "ana@example.com",
		Success:   true,
		CreatedAt: time.Now().UTC(),
	}}}

	rec := serve(t, ev, "/?category=payment&email=Ana@Example.com&booking_id="+id.Hex()+"&start_date=2026-05-01&end_date=2026-05-31&page=2")
	rec.AssertStatus(t, http.StatusOK)

	var got struct {
		Events []audit.Event `json:"events"`
		Total  int64         `json:"total"`
		Page   int           `json:"page"`
	}
	rec.DecodeJSON(t, &got)
	if len(got.Events) != 1 || got.Total != 1 || got.Page != 2 {
		t.Errorf("response = %+v", got)
	}

	f := ev.got
	if f.Category != audit.CategoryPayment || f.Email != "ana@example.com" {
		t.Errorf("filter = %+v", f)
	}
	if f.SubjectID == nil || *f.SubjectID != id {
		t.Errorf("SubjectID = %v, want %s", f.SubjectID, id.Hex())
	}
	if f.Offset != 50 || f.Limit != 50 {
		t.Errorf("Offset/Limit = %d/%d, want 50/50", f.Offset, f.Limit)
	}
	wantEnd := time.Date(2026, 5, 31, 23, 59, 59, 999999999, time.UTC)
	if f.StartTime == nil || f.EndTime == nil || !f.EndTime.Equal(wantEnd) {
		t.Errorf("time range = %v .. %v", f.StartTime, f.EndTime)
	}
}

func TestServeList_EmptyIsArray(t *testing.T) {
	rec := serve(t, &fakeEvents{}, "/")
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"events":[]`)
}

func TestServeList_BadInput(t *testing.T) {
	for _, target := range []string{
		"/?category=auth",
		"/?booking_id=xyz",
		"/?start_date=01/05/2026",
		"/?end_date=yesterday",
	} {
		t.Run(target, func(t *testing.T) {
			rec := serve(t, &fakeEvents{}, target)
			rec.AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestServeList_StoreError(t *testing.T) {
	rec := serve(t, &fakeEvents{err: errors.New("timeout")}, "/")
	rec.AssertStatus(t, http.StatusInternalServerError)
	rec.AssertContains(t, "internal server error")
}

func TestServeBooking(t *testing.T) {
	id := primitive.NewObjectID()
	ev := &fakeEvents{events: []audit.Event{{
		Category:  audit.CategoryBooking,
		EventType: audit.EventBookingApproved,
		SubjectID: &id,
		Success:   true,
	}}}

	rec := serve(t, ev, "/bookings/"+id.Hex())
	rec.AssertStatus(t, http.StatusOK)

	var got []audit.Event
	rec.DecodeJSON(t, &got)
	if len(got) != 1 || got[0].EventType != audit.EventBookingApproved {
		t.Errorf("events = %+v", got)
	}
	if ev.got.SubjectID == nil || *ev.got.SubjectID != id || ev.got.Limit != 50 {
		t.Errorf("lookup = %+v", ev.got)
	}
}

func TestServeBooking_BadID(t *testing.T) {
	rec := serve(t, &fakeEvents{}, "/bookings/nope")
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeBooking_Empty(t *testing.T) {
	rec := serve(t, &fakeEvents{}, "/bookings/"+primitive.NewObjectID().Hex())
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "[]")
}
