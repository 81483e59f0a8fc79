package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"
)

// Channel delivers one message to one user. Implementations must isolate
// their own failures: a broken channel never affects the others, and never
// the state transition that produced the message.
type Channel interface {
	Name() string
	Notify(user *models.User, msg Message) error
}

// NotificationService fans messages out to the configured channel set. The
// set is process-wide configuration fixed at startup, not per call.
type NotificationService struct {
	channels []Channel
}

// Notifier is the process-wide fan-out instance.
var Notifier = NewNotificationService(&InboxChannel{}, &EmailChannel{}, &PushChannel{})

func NewNotificationService(channels ...Channel) *NotificationService {
	return &NotificationService{channels: channels}
}

// Send delivers msg to the user over every channel. Errors are logged and
// swallowed; callers sit inside state transitions that must not roll back
// because a side channel failed.
func (ns *NotificationService) Send(userID uint, msg Message) {
	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		log.Printf("notification dropped: user %d not found: %v", userID, err)
		return
	}

	for _, ch := range ns.channels {
		if err := ch.Notify(&user, msg); err != nil {
			log.Printf("notification channel %s failed for user %d: %v", ch.Name(), userID, err)
		}
	}
}

// InboxChannel persists the message as an inbox row.
type InboxChannel struct{}

func (c *InboxChannel) Name() string { return "inbox" }

func (c *InboxChannel) Notify(user *models.User, msg Message) error {
	n := models.Notification{
		UserID:     user.ID,
		Kind:       string(msg.Kind),
		Title:      msg.Title,
		Message:    msg.Body,
		EventID:    msg.EventID,
		ServiceID:  msg.ServiceID,
		ContractID: msg.ContractID,
		PaymentID:  msg.PaymentID,
		Status:     models.NotificationUnread,
	}
	return storage.DB.Create(&n).Error
}

// EmailChannel sends through the Resend HTTP API. Without an API key it
// logs the message instead, which keeps development noise-free.
type EmailChannel struct{}

const resendAPI = "https://api.resend.com/emails"
const emailFrom = "EventLink <noreply@eventlink.app>"

var emailClient = &http.Client{Timeout: 10 * time.Second}

type resendEmail struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Notify(user *models.User, msg Message) error {
	if user.EmailNotifications == nil || !*user.EmailNotifications {
		return nil
	}

	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		log.Printf("📧 MOCK EMAIL to %s: %s: %s", user.Email, msg.Title, msg.Body)
		return nil
	}

	payload, err := json.Marshal(resendEmail{
		From:    emailFrom,
		To:      user.Email,
		Subject: msg.Title,
		Text:    msg.Body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", resendAPI, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := emailClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("email send failed with status %d", res.StatusCode)
	}
	return nil
}

// PushChannel sends to every registered Expo push token of the user.
type PushChannel struct{}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Notify(user *models.User, msg Message) error {
	if user.PushNotifications == nil || !*user.PushNotifications || user.PushTokens == nil {
		return nil
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		return fmt.Errorf("failed to unmarshal push tokens: %v", err)
	}

	data := map[string]string{"kind": string(msg.Kind)}
	if msg.ContractID != nil {
		data["contractID"] = strconv.FormatUint(uint64(*msg.ContractID), 10)
	}
	if msg.PaymentID != nil {
		data["paymentID"] = strconv.FormatUint(uint64(*msg.PaymentID), 10)
	}

	var lastError error
	for _, token := range tokens {
		if err := utils.SendPush(token, msg.Title, msg.Body, data); err != nil {
			log.Printf("failed to send push to token %s: %v", token, err)
			lastError = err
		}
	}
	return lastError
}
