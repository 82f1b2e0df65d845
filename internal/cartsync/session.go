package cartsync

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ultra-white/keda/internal/backend"
	"github.com/ultra-white/keda/internal/catalog"
	"github.com/ultra-white/keda/internal/domain"
)

// State is the reconciler's position in its lifecycle.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoadedLocal
	StateMerging
	StateLoadedServer
)

// RemoteBackend is the server side of cart storage: full-list
// replacement plus the single-item fast paths.
type RemoteBackend interface {
	backend.Backend
	backend.ItemWriter
}

// PriceLookup validates additions against the catalog and refreshes
// the price snapshot at add time.
type PriceLookup interface {
	Lookup(ctx context.Context, productID string) (catalog.Price, error)
}

// Options wires a session. Remote may be nil for a device-only
// session, Local may be nil when no device storage is available (the
// cart then lives purely in memory for a guest).
type Options struct {
	Remote      RemoteBackend
	Local       backend.Backend
	Catalog     PriceLookup
	Notifier    Notifier
	SyncDelay   time.Duration
	CallTimeout time.Duration
}

// Session owns one cart for one browser/device session or one
// authenticated user. It applies every mutation to the in-memory
// store synchronously, then persists: synchronously to device storage
// for guests, through the debounce scheduler to the server for
// authenticated sessions. The backing store is swapped from local to
// remote exactly once, at the sign-in merge.
type Session struct {
	store    *Store
	remote   RemoteBackend
	local    backend.Backend
	catalog  PriceLookup
	notifier Notifier
	timeout  time.Duration
	sched    *scheduler

	mu        sync.Mutex
	state     State
	loaded    bool
	useRemote bool
}

func NewSession(opts Options) *Session {
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}

	s := &Session{
		store:    NewStore(),
		remote:   opts.Remote,
		local:    opts.Local,
		catalog:  opts.Catalog,
		notifier: opts.Notifier,
		timeout:  opts.CallTimeout,
		state:    StateUnloaded,
	}
	s.sched = newScheduler(opts.SyncDelay, opts.CallTimeout, s.store.Items, s.syncSnapshot)
	return s
}

// Load populates the store from the session's backing storage. It
// runs at most once per session lifetime; repeated mounts of the
// consuming UI are no-ops. Load never fails to the caller: a broken
// server degrades to device storage, broken device storage degrades
// to an empty cart.
func (s *Session) Load(ctx context.Context, authenticated bool) {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return
	}
	s.loaded = true
	s.state = StateLoading
	s.mu.Unlock()

	if authenticated && s.remote != nil {
		serverItems, err := s.remote.Load(ctx)
		if err == nil {
			localItems := s.loadLocalItems(ctx)
			if len(localItems) > 0 {
				// A guest cart left on the device before sign-in is
				// folded into the server cart on first load.
				s.finishMerge(ctx, serverItems, localItems)
			} else {
				s.store.ReplaceAll(serverItems)
			}
			s.setMode(true, StateLoadedServer)
			return
		}
		log.Printf("server cart load failed, falling back to device storage: %v", err)
	}

	s.store.ReplaceAll(s.loadLocalItems(ctx))
	s.setMode(false, StateLoadedLocal)
}

// Login merges the guest cart into the freshly authenticated user's
// server cart. It happens at most once: afterwards the session is
// server-backed until it ends. If the server cart cannot be fetched
// the session stays on device storage and keeps its items.
func (s *Session) Login(ctx context.Context) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		s.Load(ctx, true)
		return
	}
	if s.useRemote || s.remote == nil {
		s.mu.Unlock()
		return
	}
	s.state = StateMerging
	s.mu.Unlock()

	serverItems, err := s.remote.Load(ctx)
	if err != nil {
		log.Printf("merge fetch failed, staying on device storage: %v", err)
		s.setMode(false, StateLoadedLocal)
		return
	}

	s.finishMerge(ctx, serverItems, s.store.Items())
	s.setMode(true, StateLoadedServer)
}

// finishMerge applies the union to the store, fires a best-effort
// persist of the union, then clears device storage. A failed persist
// does not roll the merge back; the user keeps the merged cart and
// the next mutation retries.
func (s *Session) finishMerge(ctx context.Context, serverItems, localItems []domain.LineItem) {
	merged := domain.MergeItems(serverItems, localItems)
	s.store.ReplaceAll(merged)

	go func() {
		pctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.remote.Replace(pctx, merged); err != nil {
			log.Printf("merge persist failed, will retry on next mutation: %v", err)
		}
	}()

	if s.local != nil {
		if err := s.local.Clear(ctx); err != nil {
			log.Printf("failed to clear device cart after merge: %v", err)
		}
	}
}

// AddItem puts one unit of product into the cart. Adding always
// succeeds locally; server persistence is coalesced by the debounce
// scheduler. When a catalog is wired, the addition is validated and
// the price snapshot refreshed; a transient lookup failure keeps the
// caller's snapshot.
func (s *Session) AddItem(ctx context.Context, p domain.Product) {
	if p.ID == "" {
		return
	}
	if p.SelectedSize != nil && !domain.ValidSize(*p.SelectedSize) {
		s.notifier.Error("select a valid size")
		return
	}

	if s.catalog != nil {
		price, err := s.catalog.Lookup(ctx, p.ID)
		switch {
		case err == nil:
			p.Price = price.Price
			p.OldPrice = price.OldPrice
		case errors.Is(err, catalog.ErrNotFound):
			s.notifier.Error("product is no longer available")
			return
		default:
			log.Printf("price lookup failed, keeping provided snapshot: %v", err)
		}
	}

	s.store.Add(p)
	s.persistMutation(ctx)
	s.notifier.Info("item added to cart")
}

// RemoveItem drops the item matching productID and size. A nil size
// drops every size variant, which is also what an omitted selectedSize
// means on the wire, so the local list and the server always agree on
// what a removal covered. Server-backed sessions use the single-item
// endpoint immediately; if it rejects, the list is rolled back to its
// pre-removal state.
func (s *Session) RemoveItem(ctx context.Context, productID string, size *int) {
	prev := s.store.Items()
	if !s.store.Remove(productID, size) {
		return
	}
	s.applyWithRollback(ctx, prev, func(cctx context.Context) error {
		return s.remote.RemoveItem(cctx, productID, size)
	}, "failed to remove item from cart")
}

// RemoveProduct drops every size variant of productID.
func (s *Session) RemoveProduct(ctx context.Context, productID string) {
	s.RemoveItem(ctx, productID, nil)
}

// SetQuantity replaces the matching item's quantity; a nil size
// updates every size variant. Zero or negative removes the item;
// values above the cap are clamped, not rejected.
func (s *Session) SetQuantity(ctx context.Context, productID string, quantity int, size *int) {
	if quantity <= 0 {
		s.RemoveItem(ctx, productID, size)
		return
	}
	quantity = domain.ClampQuantity(quantity)

	prev := s.store.Items()
	if !s.store.SetQuantity(productID, quantity, size) {
		return
	}
	s.applyWithRollback(ctx, prev, func(cctx context.Context) error {
		return s.remote.UpdateItem(cctx, productID, quantity, size)
	}, "failed to update quantity")
}

// Clear empties the cart. A server rejection rolls the list back so
// the user does not silently lose a cart the server still holds.
func (s *Session) Clear(ctx context.Context) {
	prev := s.store.Items()
	if len(prev) == 0 {
		return
	}
	s.store.Clear()
	s.applyWithRollback(ctx, prev, func(cctx context.Context) error {
		return s.remote.Clear(cctx)
	}, "failed to clear cart")
}

// Close flushes any pending debounced sync and stops the scheduler.
// The timer belongs to the session, not the consuming view, so this
// is the only place a pending sync is ever cut short, and it is
// flushed rather than dropped.
func (s *Session) Close(ctx context.Context) {
	if err := s.sched.Flush(ctx); err != nil {
		log.Printf("final cart sync failed: %v", err)
	}
	s.sched.Stop()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Items returns the current list in insertion order.
func (s *Session) Items() []domain.LineItem { return s.store.Items() }

func (s *Session) ItemCount() int { return s.store.ItemCount() }

func (s *Session) TotalPrice() decimal.Decimal { return s.store.TotalPrice() }

func (s *Session) TotalPriceWithoutDiscount() decimal.Decimal {
	return s.store.TotalPriceWithoutDiscount()
}

func (s *Session) TotalDiscount() decimal.Decimal { return s.store.TotalDiscount() }

func (s *Session) setMode(remote bool, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.useRemote = remote
	s.state = st
}

func (s *Session) remoteMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useRemote
}

func (s *Session) loadLocalItems(ctx context.Context) []domain.LineItem {
	if s.local == nil {
		return nil
	}
	items, err := s.local.Load(ctx)
	if err != nil {
		log.Printf("device cart load failed, starting empty: %v", err)
		return nil
	}
	return items
}

// persistMutation is the trigger every mutation ends with: schedule a
// debounced server sync, or write device storage synchronously for a
// guest.
func (s *Session) persistMutation(ctx context.Context) {
	if s.remoteMode() {
		s.sched.Schedule()
		return
	}
	if s.local == nil {
		return
	}

	var err error
	if items := s.store.Items(); len(items) == 0 {
		err = s.local.Clear(ctx)
	} else {
		err = s.local.Replace(ctx, items)
	}
	if err != nil {
		log.Printf("device cart write failed: %v", err)
	}
}

// applyWithRollback finishes a mutation that was already applied
// optimistically. Guest sessions just write the device file.
// Server-backed sessions call the single-item endpoint; a rejection
// restores prev and tells the user, so the UI never shows a state the
// server refused.
func (s *Session) applyWithRollback(ctx context.Context, prev []domain.LineItem, call func(context.Context) error, failMsg string) {
	if !s.remoteMode() {
		s.persistMutation(ctx)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	err := call(cctx)
	cancel()
	if err == nil {
		return
	}

	s.store.ReplaceAll(prev)
	if errors.Is(err, backend.ErrUnauthorized) {
		s.notifier.Error("sign in to keep your cart in sync")
	} else {
		s.notifier.Error(failMsg)
	}
}

// syncSnapshot is the scheduler's callback: transmit the latest full
// list, or an explicit clear when the list is empty so the server can
// tell "intentionally emptied" from "never had a cart". Transient
// failures leave the in-memory state untouched and are retried on the
// next mutation cycle.
func (s *Session) syncSnapshot(ctx context.Context, snapshot snapshotFunc) error {
	if !s.remoteMode() {
		return nil
	}

	items := snapshot()
	var err error
	if len(items) == 0 {
		err = s.remote.Clear(ctx)
	} else {
		err = s.remote.Replace(ctx, items)
	}

	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			s.notifier.Error("sign in to keep your cart in sync")
		} else {
			log.Printf("cart sync failed, will retry on next mutation: %v", err)
		}
	}
	return err
}
