package relay

import (
	"context"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

const topicAuthorizations = "xfill-auth"

// PubSubChannel carries fill authorizations over a libp2p gossipsub topic,
// for deployments where the trigger authority and the venue run as separate
// processes. Gossip gives at-least-once, unordered delivery, the same
// channel model the fill path is designed to survive.
type PubSubChannel struct {
	h     host.Host
	ps    *pubsub.PubSub
	log   *zap.SugaredLogger
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	muH     sync.RWMutex
	handler Handler
}

type PubSubConfig struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

// NewPubSubChannel starts a libp2p host, joins the authorization topic and
// begins dispatching inbound messages to the handler.
func NewPubSubChannel(ctx context.Context, cfg PubSubConfig) (*PubSubChannel, error) {
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

	c := &PubSubChannel{h: h, ps: ps, log: cfg.Logger}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if c.topic, err = ps.Join(topicAuthorizations); err != nil {
		return nil, err
	}
	if c.sub, err = c.topic.Subscribe(); err != nil {
		return nil, err
	}

	go c.recvLoop(ctx)

	if cfg.Logger != nil {
		cfg.Logger.Infow("relay_channel_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return c, nil
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

func (c *PubSubChannel) SetHandler(h Handler) {
	c.muH.Lock()
	c.handler = h
	c.muH.Unlock()
}

// Publish sends a signed authorization to the topic. Fire-and-forget: the
// relay infrastructure owns redelivery, this side never retries.
func (c *PubSubChannel) Publish(ctx context.Context, m Message) error {
	data, err := gobEncode(m)
	if err != nil {
		return err
	}
	return c.topic.Publish(ctx, data)
}

func (c *PubSubChannel) Close() error {
	c.sub.Cancel()
	return c.h.Close()
}

func (c *PubSubChannel) recvLoop(ctx context.Context) {
	for {
		msg, err := c.sub.Next(ctx)
		if err != nil {
			return
		}
		var m Message
		if err := gobDecode(msg.Data, &m); err != nil {
			if c.log != nil {
				c.log.Warnw("relay_decode_failed", "err", err)
			}
			continue
		}

		c.muH.RLock()
		h := c.handler
		c.muH.RUnlock()
		if h != nil {
			h(m)
		}
	}
}

var _ Channel = (*PubSubChannel)(nil)
