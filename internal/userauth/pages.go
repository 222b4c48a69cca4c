package userauth

import (
	"html/template"
	"net/http"
)

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<body>
  <h2>Login with <a href="{{.LoginURL}}">{{.ProviderName}}</a></h2>
</body>
</html>
`))

var userPage = template.Must(template.New("user").Parse(`<!DOCTYPE html>
<html lang="en">
<body>
  User:
  <pre>{{.User}}</pre>
  <a href="{{.LogoutURL}}">Logout</a>
</body>
</html>
`))

type loginPageData struct {
	ProviderName string
	LoginURL     string
}

type userPageData struct {
	User      string
	LogoutURL string
}

func renderPage(res http.ResponseWriter, t *template.Template, data interface{}) error {
	res.Header().Set("Content-Type", "text/html; charset=utf-8")
	return t.Execute(res, data)
}
