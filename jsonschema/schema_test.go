package jsonschema_test

import (
	"testing"

	j "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ds "github.com/reoring/dynskema"
	"github.com/reoring/dynskema/jsonschema"
)

func TestExport_Attributes(t *testing.T) {
	s := ds.MustCompile(ds.Declare(func(d *ds.Declarer) {
		d.Attr("model", ds.String, ds.Default("gpt-4o"), ds.Required())
		d.Attr("temperature", ds.Float, ds.In(ds.Range(0, 1)))
		d.Attr("max_tokens", []*ds.Type{ds.Integer, ds.Float})
		d.Attr("apiKey", ds.As("api_key"))
		d.Attr("stop", ds.String, ds.Array())
		d.Attr("message", ds.Array(), func(d *ds.Declarer) {
			d.Attr("role", ds.SymbolType, ds.In([]ds.Symbol{"system", "user"}), ds.Required())
		})
	}))

	out, err := jsonschema.Export(s)
	require.NoError(t, err)
	assert.Equal(t, jsonschema.Draft, out.Draft)
	assert.Equal(t, "object", out.Type)
	assert.Equal(t, []string{"model"}, out.Required)

	model := out.Properties["model"]
	assert.Equal(t, "string", model.Type)
	assert.Equal(t, "gpt-4o", model.Default)

	temp := out.Properties["temperature"]
	require.NotNil(t, temp.Minimum)
	require.NotNil(t, temp.Maximum)
	assert.Equal(t, 0.0, *temp.Minimum)
	assert.Equal(t, 1.0, *temp.Maximum)

	mt := out.Properties["max_tokens"]
	require.Len(t, mt.AnyOf, 2)
	assert.Equal(t, "integer", mt.AnyOf[0].Type)
	assert.Equal(t, "number", mt.AnyOf[1].Type)

	assert.Contains(t, out.Properties, "api_key")
	assert.NotContains(t, out.Properties, "apiKey")

	stop := out.Properties["stop"]
	assert.Equal(t, "array", stop.Type)
	assert.Equal(t, "string", stop.Items.Type)

	msg := out.Properties["message"]
	assert.Equal(t, "array", msg.Type)
	role := msg.Items.Properties["role"]
	assert.Equal(t, []any{ds.Symbol("system"), ds.Symbol("user")}, role.Enum)
	assert.Equal(t, []string{"role"}, msg.Items.Required)
	assert.Empty(t, out.Defs)
}

func TestExport_Recursive(t *testing.T) {
	var node *ds.Declaration
	node = ds.Declare(func(d *ds.Declarer) {
		d.Attr("value", ds.String)
		d.Attr("children", ds.Array(), node)
	})
	tree := ds.Declare(func(d *ds.Declarer) {
		d.Attr("root", node)
		d.Attr("other", node)
	})

	out, err := jsonschema.Export(ds.MustCompile(tree))
	require.NoError(t, err)
	assert.Equal(t, "#/$defs/root", out.Properties["root"].Ref)
	assert.Equal(t, "#/$defs/root", out.Properties["other"].Ref)
	require.Contains(t, out.Defs, "root")
	assert.Equal(t, "#/$defs/root", out.Defs["root"].Properties["children"].Items.Ref)

	self, err := jsonschema.Export(ds.MustCompile(node))
	require.NoError(t, err)
	assert.Equal(t, "#", self.Properties["children"].Items.Ref)

	data, err := j.Marshal(self)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"$ref":"#"`)
}

func TestExport_Nil(t *testing.T) {
	_, err := jsonschema.Export(nil)
	assert.Error(t, err)
}
