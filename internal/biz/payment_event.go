package biz

import "encoding/json"

// PaymentEvent PayPal webhook 事件（只解析用到的字段）
type PaymentEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// ParsePaymentEvent 解析 webhook 原始报文
func ParsePaymentEvent(raw []byte) (*PaymentEvent, error) {
	var e PaymentEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// RemoteOrderID 事件关联的 PayPal 订单号
func (e *PaymentEvent) RemoteOrderID() string {
	return e.Resource.SupplementaryData.RelatedIDs.OrderID
}
