// Package queue carries OTP deliveries over RabbitMQ: the publisher hands
// every issued code to the otp.issued queue and the consumer turns each
// message into an SMS.
package queue

import "time"

// OTPQueueName is the durable queue between the API and the SMS dispatcher.
const OTPQueueName = "otp.issued"

// OTPIssuedEvent is published whenever a challenge is issued. The code is
// in clear text; the queue must only be reachable by the dispatcher.
type OTPIssuedEvent struct {
	Phone     string    `json:"phone"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	IssuedAt  time.Time `json:"issued_at"`
}
