package call

import (
	"testing"

	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

const sdpHeader = "v=0\r\n" +
	"o=- 1 1 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"t=0 0\r\n"

func offerWith(body string) *pion.SessionDescription {
	return &pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sdpHeader + body}
}

func TestOfferRequestsVideo(t *testing.T) {
	tests := []struct {
		name  string
		desc  *pion.SessionDescription
		video bool
	}{
		{"nil description", nil, false},
		{"audio only", offerWith("m=audio 9 UDP/TLS/RTP/SAVPF 111\r\na=sendrecv\r\n"), false},
		{"video sendrecv", offerWith("m=video 9 UDP/TLS/RTP/SAVPF 96\r\na=sendrecv\r\n"), true},
		{"video sendonly", offerWith("m=video 9 UDP/TLS/RTP/SAVPF 96\r\na=sendonly\r\n"), true},
		// A recvonly video line is the placeholder of a peer that only wants
		// to receive, not a video call.
		{"video recvonly", offerWith("m=video 9 UDP/TLS/RTP/SAVPF 96\r\na=recvonly\r\n"), false},
		{"video inactive", offerWith("m=video 9 UDP/TLS/RTP/SAVPF 96\r\na=inactive\r\n"), false},
		// No direction attribute defaults to sendrecv.
		{"video without direction", offerWith("m=video 9 UDP/TLS/RTP/SAVPF 96\r\n"), true},
		{"audio plus recvonly video", offerWith(
			"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\na=sendrecv\r\n" +
				"m=video 9 UDP/TLS/RTP/SAVPF 96\r\na=recvonly\r\n"), false},
		{"unparseable", &pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: "garbage"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.video, offerRequestsVideo(tt.desc))
		})
	}
}
