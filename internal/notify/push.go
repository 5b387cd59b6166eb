package notify

import "context"

// PushSender tries the user's live WS session first and falls back to FCM.
type PushSender struct {
	WS  *WSRegistry
	FCM Sender
}

func NewPushSender(ws *WSRegistry, fcm Sender) *PushSender {
	return &PushSender{WS: ws, FCM: fcm}
}

func (p *PushSender) Send(ctx context.Context, dest Destination, title, body string, data map[string]string) error {
	if p.WS != nil {
		if err := p.WS.Send(ctx, dest, title, body, data); err == nil {
			return nil
		}
	}
	if p.FCM == nil {
		return ErrNoSession
	}
	return p.FCM.Send(ctx, dest, title, body, data)
}
