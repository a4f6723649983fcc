package p2p

import (
	"context"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/drinkius/gearbot/pkg/bot"
)

const topicEvents = "gearbot-events"

// Gossip publishes order lifecycle notifications on a gossipsub topic so
// unrelated executors can discover pending orders and react to resets and
// completions without polling the REST surface.
type Gossip struct {
	h   host.Host
	ps  *pubsub.PubSub
	log *zap.SugaredLogger

	topic *pubsub.Topic
	sub   *pubsub.Subscription

	muH     sync.RWMutex
	onEvent func(bot.Event)
}

type Config struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

func NewGossip(ctx context.Context, cfg Config) (*Gossip, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}

	g := &Gossip{h: h, ps: ps, log: cfg.Logger}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if g.topic, err = ps.Join(topicEvents); err != nil {
		return nil, err
	}
	if g.sub, err = g.topic.Subscribe(); err != nil {
		return nil, err
	}
	go g.handleEvents(ctx)

	if cfg.Logger != nil {
		cfg.Logger.Infow("gossip_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return g, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (g *Gossip) Host() host.Host { return g.h }

// SetHandler registers the callback invoked for every event received from
// peers. Local publishes are delivered to the handler as well.
func (g *Gossip) SetHandler(fn func(bot.Event)) {
	g.muH.Lock()
	g.onEvent = fn
	g.muH.Unlock()
}

// Emit publishes the event to the topic. Implements bot.Emitter so the
// engine can fan out directly.
func (g *Gossip) Emit(ev bot.Event) {
	data, err := gobEncode(EventWire{Type: ev.Type, Attributes: ev.Attributes})
	if err != nil {
		return
	}
	if err := g.topic.Publish(context.Background(), data); err != nil && g.log != nil {
		g.log.Warnw("event_publish_failed", "type", ev.Type, "err", err)
	}
}

func (g *Gossip) handleEvents(ctx context.Context) {
	for {
		msg, err := g.sub.Next(ctx)
		if err != nil {
			return
		}
		var w EventWire
		if err := gobDecode(msg.Data, &w); err != nil {
			continue
		}
		g.muH.RLock()
		fn := g.onEvent
		g.muH.RUnlock()
		if fn != nil {
			fn(bot.Event{Type: w.Type, Attributes: w.Attributes})
		}
	}
}

func (g *Gossip) Close() error { return g.h.Close() }

var _ bot.Emitter = (*Gossip)(nil)
