package consent

import "github.com/MrSnakeDoc/consentgate/internal/domain"

// Recorder observes consent outcomes (metrics).
type Recorder interface {
	BannerShown()
	Decided(kind domain.Decision)
	StorageFailed(op string)
	MalformedRecord()
}

// NopRecorder discards every observation.
type NopRecorder struct{}

func (NopRecorder) BannerShown()            {}
func (NopRecorder) Decided(domain.Decision) {}
func (NopRecorder) StorageFailed(string)    {}
func (NopRecorder) MalformedRecord()        {}
