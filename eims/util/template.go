package util

import (
	"bytes"
	"encoding/base64"
	"strings"
	"text/template"
)

var funcMap = template.FuncMap{
	"base64": base64.StdEncoding.EncodeToString,
	"upper":  strings.ToUpper,
}

func MergeTemplate(name, tpl string, model any) ([]byte, error) {

	tmpl, err := template.New(name).Funcs(funcMap).Parse(tpl)
	if err != nil {
		return nil, err
	}

	var output bytes.Buffer

	err = tmpl.Execute(&output, model)
	if err != nil {
		return nil, err
	}
	return output.Bytes(), nil
}
