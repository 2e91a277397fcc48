package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Browser finds bridge hosts.
type Browser interface {
	// Browse streams hosts as they are discovered. Addresses seen on several
	// interfaces are merged into one entry. The channel closes when ctx is done.
	Browse(ctx context.Context) (<-chan *HostService, error)

	// Find returns the first host discovered before ctx is done.
	Find(ctx context.Context) (*HostService, error)

	// Stop stops every active browse.
	Stop()
}

// BrowserConfig configures an MDNSBrowser.
type BrowserConfig struct {
	// BrowseTimeout bounds Find when ctx has no deadline.
	BrowseTimeout time.Duration

	// Interface restricts browsing to one network interface.
	// Empty means all interfaces.
	Interface string

	Logger *slog.Logger
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{BrowseTimeout: BrowseTimeout}
}

// MDNSBrowser implements Browser with zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
	logger *slog.Logger

	mu      sync.Mutex
	cancels map[int]context.CancelFunc
	nextID  int
}

// NewMDNSBrowser creates a browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MDNSBrowser{
		config:  config,
		logger:  logger,
		cancels: make(map[int]context.CancelFunc),
	}
}

// Browse implements Browser.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *HostService, error) {
	ctx, cancel := context.WithCancel(ctx)
	id := b.track(cancel)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	out := make(chan *HostService)

	go func() {
		defer close(out)
		defer b.untrack(id)
		b.aggregate(ctx, entries, removed, out)
	}()

	go func() {
		if err := zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.options()...); err != nil {
			b.logger.Warn("mdns browse failed", "error", err)
			cancel()
		}
	}()

	return out, nil
}

// Find implements Browser.
func (b *MDNSBrowser) Find(ctx context.Context) (*HostService, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.BrowseTimeout)
		defer cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	select {
	case svc, ok := <-found:
		if ok {
			return svc, nil
		}
		return nil, ErrNotFound
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNotFound, ctx.Err())
	}
}

// Stop implements Browser.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, cancel := range b.cancels {
		cancel()
		delete(b.cancels, id)
	}
}

func (b *MDNSBrowser) track(cancel context.CancelFunc) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.cancels[b.nextID] = cancel
	return b.nextID
}

func (b *MDNSBrowser) untrack(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cancel, ok := b.cancels[id]; ok {
		cancel()
		delete(b.cancels, id)
	}
}

// aggregate merges zeroconf entries by instance name and emits each new
// host once.
func (b *MDNSBrowser) aggregate(ctx context.Context, entries, removed <-chan *zeroconf.ServiceEntry, out chan<- *HostService) {
	services := make(map[string]*HostService)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			svc, err := entryToHost(entry)
			if err != nil {
				b.logger.Debug("ignoring bridge host", "instance", entry.Instance, "error", err)
				continue
			}
			if existing, found := services[svc.InstanceName]; found {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			services[svc.InstanceName] = svc
			select {
			case out <- svc:
			case <-ctx.Done():
				return
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			if existing, found := services[entry.Instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, entry)
				if len(existing.Addresses) == 0 {
					delete(services, entry.Instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

func (b *MDNSBrowser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err != nil {
			b.logger.Warn("unknown interface, browsing all", "interface", b.config.Interface, "error", err)
		} else {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// entryToHost converts a zeroconf entry to a HostService.
func entryToHost(entry *zeroconf.ServiceEntry) (*HostService, error) {
	if entry.Port <= 0 || entry.Port > 0xffff {
		return nil, fmt.Errorf("invalid port %d", entry.Port)
	}

	svc := &HostService{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    entryAddresses(entry),
	}
	if err := applyTXT(svc, StringsToTXTRecords(entry.Text)); err != nil {
		return nil, err
	}
	return svc, nil
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// mergeAddresses appends addresses not already present.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the entry's addresses from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	gone := make(map[string]bool)
	for _, addr := range entryAddresses(entry) {
		gone[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !gone[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Compile-time interface satisfaction check.
var _ Browser = (*MDNSBrowser)(nil)
