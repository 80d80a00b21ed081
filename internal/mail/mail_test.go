package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contact-app/followup/internal/domain"
)

func testContext() FollowupContext {
	return FollowupContext{
		Company:    domain.Company{ID: "c-1", Name: "Acme", Email: "buyer@acme.example", ContactName: "Kim"},
		Document:   domain.Document{ID: "d-1", Title: "Pricing 2024"},
		Followup:   domain.Followup{ID: "f-1"},
		BookingURL: "https://timerex.net/s/sales/acme",
		Score:      map[string]interface{}{"total_score": 72.4, "quality_level": "good"},
	}
}

func TestRenderFollowup(t *testing.T) {
	r := NewRenderer()
	msg, err := r.RenderFollowup(Templates{
		Subject: "  Thanks for reading {{ document.title }}  ",
		Body:    `<p>Hi {{ company.contact_name | default: "there" }},</p><p>Book: <a href="{{ booking_url }}">here</a></p><p>Score {{ score.total_score }}</p>`,
	}, testContext())
	require.NoError(t, err)

	assert.Equal(t, "buyer@acme.example", msg.To)
	assert.Equal(t, "Kim", msg.ToName)
	assert.Equal(t, "Thanks for reading Pricing 2024", msg.Subject)
	assert.Contains(t, msg.HTMLBody, `href="https://timerex.net/s/sales/acme"`)
	assert.Contains(t, msg.HTMLBody, "Score 72.4")
	assert.Equal(t, "Hi Kim,\nBook: here\nScore 72.4", msg.TextBody)
	assert.Equal(t, "f-1", msg.Tags["followup_id"])
}

func TestRenderFollowup_DefaultFilter(t *testing.T) {
	fc := testContext()
	fc.Company.ContactName = ""
	msg, err := NewRenderer().RenderFollowup(Templates{
		Subject: "Hello",
		Body:    `Hi {{ company.contact_name | default: "there" }}`,
	}, fc)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", msg.HTMLBody)
}

func TestRenderFollowup_ParseError(t *testing.T) {
	_, err := NewRenderer().RenderFollowup(Templates{Subject: "{% if %}", Body: "x"}, testContext())
	assert.Error(t, err)
}

func TestRenderFollowup_NoRecipient(t *testing.T) {
	fc := testContext()
	fc.Company.Email = ""
	_, err := NewRenderer().RenderFollowup(Templates{Subject: "s", Body: "b"}, fc)
	assert.Error(t, err)
}

func TestRender_CachesParsedTemplate(t *testing.T) {
	r := NewRenderer()
	src := "{{ n }}"
	a, err := r.Render(src, map[string]interface{}{"n": 1})
	require.NoError(t, err)
	b, err := r.Render(src, map[string]interface{}{"n": 2})
	require.NoError(t, err)
	assert.Equal(t, "1", a)
	assert.Equal(t, "2", b)

	_, ok := r.cache.Load(templateKey(src))
	assert.True(t, ok)
}

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

func TestSESTransport_Send(t *testing.T) {
	api := &fakeSES{}
	tr := &SESTransport{client: api, cfg: SESConfig{FromEmail: "sales@contact.example", FromName: "ContAct", ReplyTo: "rep@contact.example"}}

	res, err := tr.Send(context.Background(), &Message{
		To: "buyer@acme.example", ToName: "Kim", Subject: "Hi", HTMLBody: "<p>x</p>", TextBody: "x",
		Tags: map[string]string{"followup_id": "f-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ses-123", res.MessageID)
	assert.Equal(t, "ses", res.Transport)

	require.NotNil(t, api.in)
	assert.Equal(t, "ContAct <sales@contact.example>", aws.ToString(api.in.FromEmailAddress))
	assert.Equal(t, []string{"Kim <buyer@acme.example>"}, api.in.Destination.ToAddresses)
	assert.Equal(t, []string{"rep@contact.example"}, api.in.ReplyToAddresses)
	assert.Equal(t, "x", aws.ToString(api.in.Content.Simple.Body.Text.Data))
	require.Len(t, api.in.EmailTags, 1)
	assert.Equal(t, "followup_id", aws.ToString(api.in.EmailTags[0].Name))
}

func TestSESTransport_SendError(t *testing.T) {
	boom := errors.New("throttled")
	tr := &SESTransport{client: &fakeSES{err: boom}, cfg: SESConfig{FromEmail: "a@b.c"}}
	_, err := tr.Send(context.Background(), &Message{To: "x@y.z"})
	assert.ErrorIs(t, err, boom)
}

func TestLogTransport(t *testing.T) {
	res, err := LogTransport{}.Send(context.Background(), &Message{To: "x@y.z", Subject: "s"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.MessageID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = LogTransport{}.Send(ctx, &Message{To: "x@y.z"})
	assert.ErrorIs(t, err, context.Canceled)
}
