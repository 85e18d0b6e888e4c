package expression

import "fmt"

// MessageID identifies one of the eight score bands.
type MessageID int

const (
	MessageCheerUp MessageID = iota
	MessageBigFrown
	MessageFrown
	MessageSlightFrown
	MessageNeutral
	MessageSlightSmile
	MessageHappy
	MessageBeaming
)

type band struct {
	min     int
	id      MessageID
	name    string
	text    string
	english string
}

// bands are ordered by descending lower bound; the last band catches the rest.
var bands = []band{
	{95, MessageBeaming, "beaming", "활짝 웃는 얼굴이에요! 😊", "Beaming smile! 😊"},
	{90, MessageHappy, "happy", "기분 좋게 웃고 있어요! 😄", "Smiling happily! 😄"},
	{85, MessageSlightSmile, "slight_smile", "살짝 웃고 있네요! 🙂", "A slight smile! 🙂"},
	{80, MessageNeutral, "neutral", "자연스러운 표정이에요. 😌", "A natural expression. 😌"},
	{75, MessageSlightFrown, "slight_frown", "살짝 찡그리고 있어요. 😕", "Frowning a little. 😕"},
	{70, MessageFrown, "frown", "조금 찡그리고 있어요. 😣", "Frowning. 😣"},
	{65, MessageBigFrown, "big_frown", "많이 찡그리고 있어요. 😖", "Frowning a lot. 😖"},
	{0, MessageCheerUp, "cheer_up", "너무 찡그리고 있어요! 힘내세요! 😫", "Frowning too much! Cheer up! 😫"},
}

// MessageFor maps a rounded score to its message band.
func MessageFor(score int) MessageID {
	for _, b := range bands[:len(bands)-1] {
		if score >= b.min {
			return b.id
		}
	}
	return MessageCheerUp
}

// Messages returns every message ID from the highest band to the lowest.
func Messages() []MessageID {
	ids := make([]MessageID, len(bands))
	for i, b := range bands {
		ids[i] = b.id
	}
	return ids
}

func (m MessageID) band() (band, bool) {
	for _, b := range bands {
		if b.id == m {
			return b, true
		}
	}
	return band{}, false
}

// String returns the stable identifier used in JSON.
func (m MessageID) String() string {
	if b, ok := m.band(); ok {
		return b.name
	}
	return "unknown"
}

// Text returns the display message.
func (m MessageID) Text() string {
	b, _ := m.band()
	return b.text
}

// English returns the English rendition of the display message.
func (m MessageID) English() string {
	b, _ := m.band()
	return b.english
}

// MinScore returns the inclusive lower bound of the band. The lowest band
// reports 0.
func (m MessageID) MinScore() int {
	b, _ := m.band()
	return b.min
}

// MarshalText encodes the message as its identifier.
func (m MessageID) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a message identifier.
func (m *MessageID) UnmarshalText(text []byte) error {
	for _, b := range bands {
		if b.name == string(text) {
			*m = b.id
			return nil
		}
	}
	return fmt.Errorf("unknown message %q", text)
}
