package identity

import (
	"errors"
	"regexp"
	"strings"
)

// Channel is the delivery channel a one-time code travels over.
type Channel uint8

const (
	// ChannelUnknown is the zero value and never valid.
	ChannelUnknown Channel = iota
	// ChannelPhone delivers codes by SMS to an E.164 number.
	ChannelPhone
	// ChannelEmail delivers codes to an email address.
	ChannelEmail
)

var (
	// ErrInvalid is returned for malformed phone numbers, malformed email
	// addresses, or an unknown channel.
	ErrInvalid = errors.New("invalid identity")
)

var (
	e164Pattern  = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// String returns the lower-case channel tag used in keys and audit metadata.
func (c Channel) String() string {
	switch c {
	case ChannelPhone:
		return "phone"
	case ChannelEmail:
		return "email"
	default:
		return "unknown"
	}
}

// ParseChannel maps a channel tag back to a Channel.
func ParseChannel(tag string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "phone", "sms":
		return ChannelPhone, nil
	case "email":
		return ChannelEmail, nil
	default:
		return ChannelUnknown, ErrInvalid
	}
}

// Ref identifies the account signing in. A Ref is a value type and is not
// modified once a sign-in attempt has started.
type Ref struct {
	Channel Channel
	Address string
}

// Phone builds a phone Ref. The number is normalised by dropping spaces,
// dashes and parentheses but is not otherwise rewritten.
func Phone(number string) Ref {
	return Ref{Channel: ChannelPhone, Address: normalizePhone(number)}
}

// Email builds an email Ref with a trimmed, lower-cased address.
func Email(address string) Ref {
	return Ref{Channel: ChannelEmail, Address: strings.ToLower(strings.TrimSpace(address))}
}

// New builds a Ref for an explicit channel.
func New(channel Channel, address string) Ref {
	switch channel {
	case ChannelPhone:
		return Phone(address)
	case ChannelEmail:
		return Email(address)
	default:
		return Ref{Channel: channel, Address: address}
	}
}

// Validate checks the address against the channel's format.
func (r Ref) Validate() error {
	switch r.Channel {
	case ChannelPhone:
		if !e164Pattern.MatchString(r.Address) {
			return ErrInvalid
		}
	case ChannelEmail:
		if len(r.Address) > 254 || !emailPattern.MatchString(r.Address) {
			return ErrInvalid
		}
	default:
		return ErrInvalid
	}
	return nil
}

// Key is the stable string used to key counters, cooldowns, locks and
// trust records for this identity.
func (r Ref) Key() string {
	return r.Channel.String() + ":" + r.Address
}

// IsZero reports whether r is the zero Ref.
func (r Ref) IsZero() bool {
	return r.Channel == ChannelUnknown && r.Address == ""
}

// String renders the Ref as its key.
func (r Ref) String() string {
	return r.Key()
}

// Masked returns a redacted address suitable for logs: the last four
// digits of a phone number, or the first letter and domain of an email.
func (r Ref) Masked() string {
	switch r.Channel {
	case ChannelPhone:
		if len(r.Address) <= 4 {
			return "****"
		}
		return strings.Repeat("*", len(r.Address)-4) + r.Address[len(r.Address)-4:]
	case ChannelEmail:
		at := strings.LastIndexByte(r.Address, '@')
		if at <= 0 {
			return "***"
		}
		return r.Address[:1] + "***" + r.Address[at:]
	default:
		return "***"
	}
}

func normalizePhone(number string) string {
	number = strings.TrimSpace(number)
	var b strings.Builder
	b.Grow(len(number))
	for _, c := range number {
		switch c {
		case ' ', '-', '(', ')', '.':
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
