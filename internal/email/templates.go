package email

import "html/template"

const (
	TemplateConfirmation         = "appeal-confirmation"
	TemplateInternalNotification = "appeal-internal-notification"
)

// ConfirmationData is rendered into the message sent to the appellant.
type ConfirmationData struct {
	CompanyName      string
	CompanyNumber    string
	PenaltyReference string
	UserEmail        string
}

// NotificationData is rendered into the message sent to the team handling
// the appeal.
type NotificationData struct {
	AppealID         string
	CompanyName      string
	CompanyNumber    string
	PenaltyReference string
	UserEmail        string
	Reason           string
	// Details are label/value rows describing the reason.
	Details     []Detail
	Attachments []string
}

type Detail struct {
	Label string
	Value string
}

func parseTemplates() *template.Template {
	t := template.New("email")
	template.Must(t.New(TemplateConfirmation).Parse(confirmationTemplate))
	template.Must(t.New(TemplateInternalNotification).Parse(internalNotificationTemplate))
	return t
}

const styles = `body { font-family: Arial, sans-serif; line-height: 1.5; color: #0b0c0c; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 10px solid #1d70b8; padding-bottom: 10px; margin-bottom: 20px; }
        .panel { background: #00703c; color: white; padding: 20px; margin: 20px 0; }
        table { border-collapse: collapse; width: 100%; }
        th, td { text-align: left; padding: 8px 0; border-bottom: 1px solid #b1b4b6; vertical-align: top; }
        .footer { margin-top: 30px; font-size: 14px; color: #505a5f; }`

const confirmationTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Confirmation of your appeal</title>
    <style>
        ` + styles + `
    </style>
</head>
<body>
    <div class="header">
        <h1>Appeal a late filing penalty</h1>
    </div>

    <div class="panel">
        <h2>Appeal submitted</h2>
        <p>Penalty reference: <strong>{{.PenaltyReference}}</strong></p>
    </div>

    <p>We have received your appeal against the late filing penalty for {{.CompanyName}} ({{.CompanyNumber}}).</p>

    <p>We will usually respond within 30 working days. You do not need to pay the penalty while we review your appeal.</p>

    <div class="footer">
        <p>This email was sent to {{.UserEmail}} because an appeal was submitted using this address.</p>
    </div>
</body>
</html>`

const internalNotificationTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New appeal {{.AppealID}}</title>
    <style>
        ` + styles + `
    </style>
</head>
<body>
    <div class="header">
        <h1>New appeal against a late filing penalty</h1>
    </div>

    <table>
        <tr><th>Appeal ID</th><td>{{.AppealID}}</td></tr>
        <tr><th>Company</th><td>{{.CompanyName}} ({{.CompanyNumber}})</td></tr>
        <tr><th>Penalty reference</th><td>{{.PenaltyReference}}</td></tr>
        <tr><th>Submitted by</th><td>{{.UserEmail}}</td></tr>
        <tr><th>Reason</th><td>{{.Reason}}</td></tr>
        {{range .Details}}<tr><th>{{.Label}}</th><td>{{.Value}}</td></tr>
        {{end}}
    </table>

    {{if .Attachments}}
    <h2>Evidence</h2>
    <ul>
        {{range .Attachments}}<li>{{.}}</li>
        {{end}}
    </ul>
    {{else}}
    <p>No evidence was uploaded.</p>
    {{end}}
</body>
</html>`
