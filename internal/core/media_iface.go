package core

import (
	"github.com/pion/webrtc/v4"
)

// MediaConnection is one negotiated media path to a single remote participant.
type MediaConnection interface {
	// CreateOffer creates an offer and applies it as the local description.
	CreateOffer() (webrtc.SessionDescription, error)
	// AcceptOffer applies a remote offer and returns the local answer.
	AcceptOffer(webrtc.SessionDescription) (webrtc.SessionDescription, error)
	// AcceptAnswer applies the remote answer to a pending local offer.
	AcceptAnswer(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// AddLocalTrack attaches the shared local audio track.
	AddLocalTrack(webrtc.TrackLocal) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnStateChange sets a callback for peer connection state changes.
	OnStateChange(func(webrtc.PeerConnectionState))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	// Close should stop all underlying media resources.
	Close()
}
