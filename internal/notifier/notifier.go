package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

var DefaultRelays = []string{"wss://nostr.mutinywallet.com"}

type publishFunc func(ctx context.Context, url string, event nostr.Event) error

// Notifier posts operator alerts as nostr notes.
type Notifier struct {
	relayURLs                []string
	npub, pubkey, privateKey string
	publish                  publishFunc
}

func New(nsec string, relays []string) (*Notifier, error) {
	prefix, sk, err := nip19.Decode(nsec)
	if err != nil {
		return nil, fmt.Errorf("nip19 decode: %w", err)
	}
	privateKey, ok := sk.(string)
	if prefix != "nsec" || !ok {
		return nil, fmt.Errorf("expected nsec, got %s", prefix)
	}

	pubkey, err := nostr.GetPublicKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("get pubkey: %w", err)
	}

	npub, err := nip19.EncodePublicKey(pubkey)
	if err != nil {
		return nil, fmt.Errorf("encode pubkey: %w", err)
	}

	if len(relays) == 0 {
		relays = DefaultRelays
	}

	return &Notifier{
		relayURLs:  relays,
		npub:       npub,
		pubkey:     pubkey,
		privateKey: privateKey,
		publish:    publishToRelay,
	}, nil
}

// Npub is the public key operators follow to receive alerts.
func (n *Notifier) Npub() string {
	return n.npub
}

// Send publishes content to every relay. It fails only if no relay accepted
// the note. A nil Notifier drops the note.
func (n *Notifier) Send(ctx context.Context, content string) error {
	if n == nil {
		return nil
	}

	event, err := n.newEvent(content)
	if err != nil {
		return err
	}

	var errs []error
	for _, url := range n.relayURLs {
		if err := n.publish(ctx, url, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
		}
	}
	if len(errs) == len(n.relayURLs) {
		return errors.Join(errs...)
	}
	return nil
}

func (n *Notifier) newEvent(content string) (nostr.Event, error) {
	event := nostr.Event{
		PubKey:    n.pubkey,
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindTextNote,
		Tags:      nil,
		Content:   content,
	}
	if err := event.Sign(n.privateKey); err != nil {
		return event, fmt.Errorf("sign event: %w", err)
	}

	return event, nil
}

func publishToRelay(ctx context.Context, url string, event nostr.Event) error {
	relay, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return err
	}
	defer relay.Close()

	status, err := relay.Publish(ctx, event)
	if err != nil {
		return err
	}
	if status == nostr.PublishStatusFailed {
		return errors.New("relay rejected event")
	}
	return nil
}
