package pagination

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/Sternrassler/callstream/internal/testutil"
	"github.com/Sternrassler/callstream/pkg/call"
)

func walkCall(a *fakeAPI, page int) call.Call[Page[int]] {
	return pageCall(a, page, 0)
}

// threePages serves pages of 10, 10 and 5 items.
func threePages() *fakeAPI {
	api := newFakeAPI()
	api.set(1, okPage(seq(1, 10), 1, 3))
	api.set(2, okPage(seq(11, 20), 2, 3))
	api.set(3, okPage(seq(21, 25), 3, 3))
	return api
}

func TestFetchAllPages(t *testing.T) {
	api := threePages()

	items, err := FetchAllPages(context.Background(), api, walkCall)
	if err != nil {
		t.Fatalf("FetchAllPages() error = %v", err)
	}
	if !slices.Equal(items, seq(1, 25)) {
		t.Errorf("items = %v, want %v", items, seq(1, 25))
	}
	if want := []int{1, 2, 3}; !slices.Equal(api.requests(), want) {
		t.Errorf("requested pages = %v, want %v", api.requests(), want)
	}
}

func TestFetchAllPages_ErrorStopsWalk(t *testing.T) {
	api := threePages()
	api.set(2, testutil.Fail[Page[int]](502, "Bad Gateway"))

	items, err := FetchAllPages(context.Background(), api, walkCall)
	if err == nil {
		t.Fatal("FetchAllPages() error = nil, want error")
	}
	if items != nil {
		t.Errorf("items = %v, want nil", items)
	}

	var te *call.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *call.TransportError", err)
	}
	if te.StatusCode != 502 {
		t.Errorf("StatusCode = %d, want 502", te.StatusCode)
	}
	if want := []int{1, 2}; !slices.Equal(api.requests(), want) {
		t.Errorf("requested pages = %v, want %v", api.requests(), want)
	}
}

func TestFetchAllPages_SinglePage(t *testing.T) {
	api := newFakeAPI()
	api.set(1, okPage(seq(1, 4), 1, 1))

	items, err := FetchAllPages(context.Background(), api, walkCall)
	if err != nil {
		t.Fatalf("FetchAllPages() error = %v", err)
	}
	if !slices.Equal(items, seq(1, 4)) {
		t.Errorf("items = %v, want %v", items, seq(1, 4))
	}
}

func TestFetchAllPages_EmptyCollection(t *testing.T) {
	api := newFakeAPI()
	api.set(1, okPage(nil, 1, 1))

	items, err := FetchAllPages(context.Background(), api, walkCall)
	if err != nil {
		t.Fatalf("FetchAllPages() error = %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("items = %#v, want empty non-nil slice", items)
	}
}

func TestFetchAllPages_ManyPagesIterative(t *testing.T) {
	const total = 20000
	fn := func(_ struct{}, page int) call.Call[Page[int]] {
		return testutil.Succeed(NewPage([]int{page}, page, total))
	}

	items, err := FetchAllPages(context.Background(), struct{}{}, fn)
	if err != nil {
		t.Fatalf("FetchAllPages() error = %v", err)
	}
	if len(items) != total {
		t.Errorf("len(items) = %d, want %d", len(items), total)
	}
	if items[total-1] != total {
		t.Errorf("last item = %d, want %d", items[total-1], total)
	}
}

func TestWalkPages_OnNextPerPage(t *testing.T) {
	api := threePages()

	var pages []int
	var sizes []int
	err := WalkPages(context.Background(), api, walkCall, func(page int, items []int) {
		pages = append(pages, page)
		sizes = append(sizes, len(items))
	})
	if err != nil {
		t.Fatalf("WalkPages() error = %v", err)
	}
	if want := []int{1, 2, 3}; !slices.Equal(pages, want) {
		t.Errorf("pages = %v, want %v", pages, want)
	}
	if want := []int{10, 10, 5}; !slices.Equal(sizes, want) {
		t.Errorf("sizes = %v, want %v", sizes, want)
	}
}

func TestWalkPages_ContextCancelled(t *testing.T) {
	pending := testutil.NewPending[Page[int]]()
	fn := func(_ struct{}, page int) call.Call[Page[int]] { return pending }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := WalkPages(ctx, struct{}{}, fn, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WalkPages() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestSingleAllPages(t *testing.T) {
	items, err := SingleAllPages(threePages(), walkCall).Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !slices.Equal(items, seq(1, 25)) {
		t.Errorf("items = %v, want %v", items, seq(1, 25))
	}
}

func TestSingleAllPages_Rejects(t *testing.T) {
	api := threePages()
	api.set(2, testutil.Fail[Page[int]](500, "Internal Server Error"))

	var got []int
	var gotErr error
	done := make(chan struct{})
	SingleAllPages(api, walkCall).Subscribe(context.Background(),
		func(items []int) {
			got = items
			close(done)
		},
		func(err error) {
			gotErr = err
			close(done)
		},
	)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SingleAllPages did not resolve")
	}

	if got != nil {
		t.Errorf("items = %v, want none", got)
	}
	var te *call.TransportError
	if !errors.As(gotErr, &te) {
		t.Errorf("error = %v, want *call.TransportError", gotErr)
	}
}

func TestSingleAllPages_IsCold(t *testing.T) {
	api := threePages()
	SingleAllPages(api, walkCall)

	if len(api.requests()) != 0 {
		t.Errorf("requested pages = %v before subscription, want none", api.requests())
	}
}
