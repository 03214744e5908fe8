package receiver

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
)

var formPage = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html lang="en">
  <head>
    <title>{{.Title}}</title>
    <meta charset="utf-8">
  </head>
  <body>
    <h1>Simple file submission</h1>
    <p>This is dangerous! Be careful!</p>
    <form method="post" action="{{.Action}}" enctype="multipart/form-data">
      <input type="file" name="{{.Field}}" multiple>
      <input type="submit">
    </form>
  </body>
</html>
`))

func renderFormPage() ([]byte, error) {
	var buf bytes.Buffer
	data := struct{ Title, Action, Field string }{"File submission", "/", uploadField}
	if err := formPage.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AcquireFormPage writes the upload form to dir/name unless a file by that
// name already exists. The returned release removes dir/name and must be
// called on every exit path.
func AcquireFormPage(dir, name string) (release func() error, err error) {
	p := filepath.Join(dir, name)
	release = func() error {
		if _, err := os.Stat(p); err != nil {
			return nil
		}
		log.Printf("[form] removing temporary submission file %s", p)
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove form page: %w", err)
		}
		return nil
	}

	if _, err := os.Stat(p); err == nil {
		log.Printf("[form] %s already exists, leaving it as is", p)
		return release, nil
	}
	b, err := renderFormPage()
	if err != nil {
		return nil, fmt.Errorf("render form page: %w", err)
	}
	log.Printf("[form] creating temporary submission file %s", p)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return nil, fmt.Errorf("write form page: %w", err)
	}
	return release, nil
}
