package provisioning

import (
	"context"
	"fmt"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

// LiveKitClient provisions rooms and SIP participants through the LiveKit
// server APIs. The voice agent worker joins rooms on its own; this adapter
// only creates the room (with agent metadata) and dials the callee into it.
type LiveKitClient struct {
	rooms *lksdk.RoomServiceClient
	sip   *lksdk.SIPClient
}

func NewLiveKitClient(url, apiKey, apiSecret string) (*LiveKitClient, error) {
	if url == "" || apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("%w: livekit url, api key and secret are required", ErrNotConfigured)
	}
	return &LiveKitClient{
		rooms: lksdk.NewRoomServiceClient(url, apiKey, apiSecret),
		sip:   lksdk.NewSIPClient(url, apiKey, apiSecret),
	}, nil
}

func (c *LiveKitClient) Name() string { return "livekit" }

func (c *LiveKitClient) HealthCheck(ctx context.Context) error {
	_, err := c.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{})
	return err
}

func (c *LiveKitClient) CreateSession(ctx context.Context, req CreateSessionRequest) (Session, error) {
	room, err := c.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:         req.Name,
		Metadata:     req.Metadata,
		EmptyTimeout: req.EmptyTimeoutSeconds,
	})
	if err != nil {
		return Session{}, fmt.Errorf("provisioning: create room %q: %w", req.Name, err)
	}
	return Session{Name: room.Name, SID: room.Sid}, nil
}

func (c *LiveKitClient) DialOut(ctx context.Context, req DialOutRequest) (DialOutResult, error) {
	if req.TrunkID == "" {
		return DialOutResult{}, fmt.Errorf("%w: outbound trunk id missing", ErrNotConfigured)
	}
	info, err := c.sip.CreateSIPParticipant(ctx, &livekit.CreateSIPParticipantRequest{
		SipTrunkId:          req.TrunkID,
		SipCallTo:           req.PhoneNumber,
		RoomName:            req.SessionName,
		ParticipantIdentity: req.ParticipantIdentity,
		ParticipantName:     req.ParticipantName,
	})
	if err != nil {
		return DialOutResult{}, fmt.Errorf("provisioning: dial %s: %w", req.PhoneNumber, err)
	}
	return DialOutResult{
		ExternalCallRef: info.SipCallId,
		ParticipantID:   info.ParticipantId,
	}, nil
}
