package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeXMLFlat(t *testing.T) {
	p, err := Decode([]byte(`<InvoiceNo>7</InvoiceNo><StockId>S1</StockId><Qty>2</Qty>`))
	require.NoError(t, err)
	v, ok := p.Get("InvoiceNo")
	assert.True(t, ok)
	assert.Equal(t, "7", v)
	v, ok = p.Get("StockId")
	assert.True(t, ok)
	assert.Equal(t, "S1", v)
}

func TestDecodeXMLNewOld(t *testing.T) {
	p, err := Decode([]byte(`<new><ItemCode>M1</ItemCode><Description1>b</Description1></new><old><ItemCode>M1</ItemCode></old>`))
	require.NoError(t, err)
	v, ok := p.Get("ItemCode")
	assert.True(t, ok)
	assert.Equal(t, "M1", v)
	v, ok = p.Get("Description1")
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	v, ok = p.OldValue("ItemCode")
	assert.True(t, ok)
	assert.Equal(t, "M1", v)

	resolved, ok := p.Resolve("ItemCode")
	assert.True(t, ok)
	assert.Equal(t, "M1", resolved)
}

func TestDecodeXMLNewOldPKChanged(t *testing.T) {
	// A PK value that actually changes between pre- and post-image: the
	// WHERE predicate must resolve to the old value, not silently fall
	// back to the new one.
	p, err := Decode([]byte(`<new><ItemCode>M2</ItemCode><Description1>b</Description1></new><old><ItemCode>M1</ItemCode></old>`))
	require.NoError(t, err)
	v, ok := p.Get("ItemCode")
	assert.True(t, ok)
	assert.Equal(t, "M2", v)
	v, ok = p.OldValue("ItemCode")
	assert.True(t, ok)
	assert.Equal(t, "M1", v)

	resolved, ok := p.Resolve("ItemCode")
	assert.True(t, ok)
	assert.Equal(t, "M1", resolved)
}

func TestDecodeJSONFlat(t *testing.T) {
	p, err := Decode([]byte(`{"InvoiceNo":"7","StockId":"S1","Qty":2}`))
	require.NoError(t, err)
	v, ok := p.Get("InvoiceNo")
	assert.True(t, ok)
	assert.Equal(t, "7", v)
	v, ok = p.Get("Qty")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestDecodeJSONNewOld(t *testing.T) {
	p, err := Decode([]byte(`{"new":{"ItemCode":"M1","Description1":"b"},"old":{"ItemCode":"M1"}}`))
	require.NoError(t, err)
	v, ok := p.Get("Description1")
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	v, ok = p.OldValue("ItemCode")
	assert.True(t, ok)
	assert.Equal(t, "M1", v)
}

func TestDecodeXMLWrappedInJSONString(t *testing.T) {
	p, err := Decode([]byte(`"<InvoiceNo>7</InvoiceNo>"`))
	require.NoError(t, err)
	v, ok := p.Get("InvoiceNo")
	assert.True(t, ok)
	assert.Equal(t, "7", v)
}

func TestPayloadNewFields(t *testing.T) {
	p := Payload{{Key: "ItemCode", Value: "M1"}, {Key: "old_ItemCode", Value: "M0"}}
	nf := p.NewFields()
	require.Len(t, nf, 1)
	assert.Equal(t, "ItemCode", nf[0].Key)
}
