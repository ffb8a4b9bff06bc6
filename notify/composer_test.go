package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/contractnotify/directory"
	"github.com/c360studio/contractnotify/mail"
	"github.com/c360studio/contractnotify/responsibility"
	"github.com/c360studio/contractnotify/vocabulary/contract"
)

const (
	testServer     = "https://optiflow.example/"
	testController = "d:contract_controller_role"
)

type preparedLetter struct {
	recipient string
	letter    mail.Letter
}

type fakePreparer struct {
	letters []preparedLetter
	err     error
}

func (f *fakePreparer) PrepareLetter(_ context.Context, recipient string, letter mail.Letter) (*mail.MailObject, error) {
	f.letters = append(f.letters, preparedLetter{recipient: recipient, letter: letter})
	obj := &mail.MailObject{ID: "d:mail_test", Recipient: recipient}
	return obj, f.err
}

// slashEscaper renders {{key}} placeholders and escapes "/" the way Mustache.js does.
type slashEscaper struct{}

func (slashEscaper) Render(source string, data map[string]any) (string, error) {
	out := source
	for k, v := range data {
		out = strings.ReplaceAll(out, "{{"+k+"}}", strings.ReplaceAll(v.(string), "/", "&#x2F;"))
	}
	return out, nil
}

type fakeTemplates struct {
	err error
}

func (f fakeTemplates) GetTemplate(string) (mail.Template, error) {
	return mail.Template{}, f.err
}

func person(id string, valid bool) *directory.Document {
	return &directory.Document{ID: id, Triples: []directory.Triple{
		{Predicate: contract.Valid, Object: valid},
	}}
}

func testDirectory() *directory.Memory {
	m := directory.NewMemory()
	m.Put(person("d:executor", true))
	m.Put(person("d:retired", false))
	m.Put(&directory.Document{ID: "d:c1", Triples: []directory.Triple{
		{Predicate: contract.RegistrationNumber, Object: "42/2024"},
	}})
	m.Put(&directory.Document{ID: "d:c2"})
	return m
}

func testTemplates() *mail.TemplateStore {
	store := mail.NewTemplateStore(nil, nil)
	for _, key := range []string{
		"contract-notify-executor",
		"contract-notify-department",
		"contract-notify-controller",
		"contract-notify-controller-not-uz",
	} {
		store.Put(mail.Template{Key: key, Subject: "{{app_name}} " + key, Body: "{{contract_list}}"})
	}
	return store
}

func newTestComposer(dir Directory, templates mail.TemplateSource, renderer mail.Renderer, preparer mail.Preparer) *Composer {
	return NewComposer(dir, templates, renderer, preparer, Config{
		Server:         testServer,
		ControllerRole: testController,
	})
}

func TestComposer_Notify(t *testing.T) {
	preparer := &fakePreparer{}
	c := newTestComposer(testDirectory(), testTemplates(), mail.NewMustacheRenderer(), preparer)

	res := c.Notify(context.Background(), "d:executor", responsibility.ReasonExecutor, []string{"d:c1", "d:c2", "d:missing"})

	require.NoError(t, res.Err)
	assert.Equal(t, StatusPrepared, res.Status)
	assert.Equal(t, "d:executor", res.Recipient)
	assert.Empty(t, res.Replaced)
	assert.Equal(t, "contract-notify-executor", res.TemplateKey)
	assert.Equal(t, "d:mail_test", res.MailID)

	require.Len(t, preparer.letters, 1)
	got := preparer.letters[0]
	assert.Equal(t, "d:executor", got.recipient)
	assert.Equal(t, "Optiflow contract-notify-executor", got.letter.Subject)
	assert.Equal(t, strings.Join([]string{
		"42/2024 https://optiflow.example/#/d:c1",
		"б/н https://optiflow.example/#/d:c2",
		"б/н https://optiflow.example/#/d:missing",
	}, "\n"), got.letter.Body)
}

func TestComposer_TemplateSelection(t *testing.T) {
	tests := []struct {
		reason responsibility.Reason
		want   string
	}{
		{responsibility.ReasonExecutor, "contract-notify-executor"},
		{responsibility.ReasonDepartment, "contract-notify-department"},
		{responsibility.ReasonController, "contract-notify-controller"},
		{responsibility.ReasonControllerNotUZ, "contract-notify-controller-not-uz"},
	}

	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			preparer := &fakePreparer{}
			c := newTestComposer(testDirectory(), testTemplates(), mail.NewMustacheRenderer(), preparer)

			res := c.Notify(context.Background(), testController, tt.reason, []string{"d:c1"})
			assert.Equal(t, StatusPrepared, res.Status)
			assert.Equal(t, tt.want, res.TemplateKey)
			require.Len(t, preparer.letters, 1)
			assert.Equal(t, "Optiflow "+tt.want, preparer.letters[0].letter.Subject)
		})
	}
}

func TestComposer_UnknownReasonIsSkipped(t *testing.T) {
	preparer := &fakePreparer{}
	c := newTestComposer(testDirectory(), testTemplates(), mail.NewMustacheRenderer(), preparer)

	var res Result
	require.NotPanics(t, func() {
		res = c.Notify(context.Background(), "d:executor", responsibility.Reason(99), []string{"d:c1"})
	})
	assert.Equal(t, StatusSkipped, res.Status)
	assert.ErrorIs(t, res.Err, mail.ErrTemplateNotFound)
	assert.Empty(t, preparer.letters)
}

func TestComposer_MissingTemplateIsSkipped(t *testing.T) {
	preparer := &fakePreparer{}
	c := newTestComposer(testDirectory(), mail.NewTemplateStore(nil, nil), mail.NewMustacheRenderer(), preparer)

	res := c.Notify(context.Background(), "d:executor", responsibility.ReasonExecutor, []string{"d:c1"})
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, "contract-notify-executor", res.TemplateKey)
	assert.Empty(t, preparer.letters)
}

func TestComposer_TemplateSourceFailure(t *testing.T) {
	boom := errors.New("store offline")
	c := newTestComposer(testDirectory(), fakeTemplates{err: boom}, mail.NewMustacheRenderer(), &fakePreparer{})

	res := c.Notify(context.Background(), "d:executor", responsibility.ReasonExecutor, []string{"d:c1"})
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, boom)
}

func TestComposer_UnescapesSlashes(t *testing.T) {
	preparer := &fakePreparer{}
	c := newTestComposer(testDirectory(), testTemplates(), slashEscaper{}, preparer)

	res := c.Notify(context.Background(), "d:executor", responsibility.ReasonExecutor, []string{"d:c1"})
	require.Equal(t, StatusPrepared, res.Status)

	body := preparer.letters[0].letter.Body
	assert.NotContains(t, body, "&#x2F;")
	assert.Equal(t, "42/2024 https://optiflow.example/#/d:c1", body)
	assert.Equal(t, 5, strings.Count(body, "/"))
}

func TestComposer_RecipientRecheck(t *testing.T) {
	tests := []struct {
		name      string
		recipient string
		want      string
		replaced  string
	}{
		{"valid recipient kept", "d:executor", "d:executor", ""},
		{"invalid recipient replaced", "d:retired", testController, "d:retired"},
		{"unknown recipient replaced", "d:ghost", testController, "d:ghost"},
		{"controller not rechecked", testController, testController, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testDirectory()
			preparer := &fakePreparer{}
			c := newTestComposer(dir, testTemplates(), mail.NewMustacheRenderer(), preparer)

			res := c.Notify(context.Background(), tt.recipient, responsibility.ReasonDepartment, []string{"d:c1"})
			assert.Equal(t, StatusPrepared, res.Status)
			assert.Equal(t, tt.want, res.Recipient)
			assert.Equal(t, tt.replaced, res.Replaced)
			assert.Equal(t, tt.want, preparer.letters[0].recipient)
			if tt.recipient == testController {
				assert.Zero(t, dir.Loads(testController))
			}
		})
	}
}

func TestComposer_SkipRecipientCheck(t *testing.T) {
	preparer := &fakePreparer{}
	c := NewComposer(testDirectory(), testTemplates(), mail.NewMustacheRenderer(), preparer, Config{
		SkipRecipientCheck: true,
	})

	res := c.Notify(context.Background(), "d:retired", responsibility.ReasonExecutor, []string{"d:c1"})
	assert.Equal(t, "d:retired", res.Recipient)
}

func TestComposer_PreparerFailure(t *testing.T) {
	boom := errors.New("transport down")
	c := newTestComposer(testDirectory(), testTemplates(), mail.NewMustacheRenderer(), &fakePreparer{err: boom})

	res := c.Notify(context.Background(), "d:executor", responsibility.ReasonExecutor, []string{"d:c1"})
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, "d:mail_test", res.MailID)
}

func TestComposer_NotifyList(t *testing.T) {
	list := responsibility.NewList()
	list.Add(responsibility.NewResponsible("d:executor", responsibility.ReasonExecutor, "d:c1"))
	list.Add(responsibility.NewResponsible(testController, responsibility.ReasonController, "d:c2"))
	list.Add(responsibility.NewResponsible(testController, responsibility.ReasonControllerNotUZ, "d:c3"))
	list.Add(responsibility.NewResponsible("d:executor", responsibility.ReasonExecutor, "d:c4"))

	preparer := &fakePreparer{}
	c := newTestComposer(testDirectory(), testTemplates(), mail.NewMustacheRenderer(), preparer)

	results := c.NotifyList(context.Background(), list)

	require.Len(t, results, 3)
	assert.Equal(t, []string{"d:c1", "d:c4"}, results[0].ContractIDs)
	assert.Equal(t, responsibility.ReasonController, results[1].Reason)
	assert.Equal(t, responsibility.ReasonControllerNotUZ, results[2].Reason)
	assert.Equal(t, map[Status]int{StatusPrepared: 3}, Counts(results))
	assert.Len(t, preparer.letters, 3)
}

func TestResult_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Result{
		Recipient: "d:x",
		Reason:    responsibility.Reason(99),
		Status:    StatusSkipped,
		Err:       mail.ErrTemplateNotFound,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"recipient": "d:x",
		"reason": "reason(99)",
		"contract_ids": null,
		"status": "skipped",
		"error": "template not found"
	}`, string(data))
}
