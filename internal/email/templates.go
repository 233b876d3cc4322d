package email

import (
	"fmt"
	"html"

	"spicywod/internal/models"
)

func generateWelcomeHTML(user *models.User) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Welcome to SpicyWOD</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.6;
            color: #222;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .container {
            background-color: white;
            padding: 40px;
            border: 2px solid #222;
        }
        .logo {
            font-size: 28px;
            font-weight: bold;
            color: #c0392b;
            margin-bottom: 10px;
        }
        .footer {
            margin-top: 40px;
            padding-top: 20px;
            border-top: 1px solid #ddd;
            font-size: 14px;
            color: #777;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="logo">SpicyWOD</div>
        <p>Welcome aboard!</p>
        <p>Your account is ready. With SpicyWOD you can:</p>
        <ul>
            <li>Create workouts with their scoring scheme and movements</li>
            <li>Log results round by round</li>
            <li>Track your best score on every workout</li>
        </ul>
        <p>See you at the whiteboard.</p>
        <div class="footer">
            <p>This email was sent to %s because an account was created with this address.</p>
        </div>
    </div>
</body>
</html>`, html.EscapeString(user.Email))
}

func generateWelcomeText(user *models.User) string {
	return fmt.Sprintf(`Welcome aboard!

Your SpicyWOD account is ready. With SpicyWOD you can:
- Create workouts with their scoring scheme and movements
- Log results round by round
- Track your best score on every workout

See you at the whiteboard.

---
This email was sent to %s because an account was created with this address.`, user.Email)
}
