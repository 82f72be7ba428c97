// Package assistant runs one utterance end to end: classification, bucketing,
// concurrent execution of every bucket and merging of the results.
package assistant

type Channel string

const (
	ChannelVoice Channel = "voice"
	ChannelText  Channel = "text"
	ChannelWeb   Channel = "web"
)

// Session identifies who is talking and how. It is passed explicitly to
// every collaborator so several users can be served by one process.
type Session struct {
	UserID   string
	Username string
	Language string
	Channel  Channel
}

func (s Session) Lang() string {
	if s.Language == "" {
		return "en"
	}
	return s.Language
}

// Reply is what a processed utterance produced.
type Reply struct {
	Text   string
	Images []string
	Exit   bool
}
