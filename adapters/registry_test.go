package adapters

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, store := range SupportedStores() {
		t.Run(store, func(t *testing.T) {
			adapter, err := New(store, testConfig(t), logrus.New())
			require.NoError(t, err)
			defer adapter.Close()
			assert.Equal(t, store, adapter.GetStoreName())
		})
	}
}

func TestNew_Variants(t *testing.T) {
	adapter, err := New("Zehrs", testConfig(t), logrus.New())
	require.NoError(t, err)
	defer adapter.Close()
	loblaw, ok := adapter.(*LoblawAdapter)
	require.True(t, ok)
	assert.Equal(t, "https://www.zehrs.ca", loblaw.BaseURL())

	adapter, err = New("Walmart", testConfig(t), logrus.New())
	require.NoError(t, err)
	defer adapter.Close()
	_, ok = adapter.(*WalmartAdapter)
	assert.True(t, ok)
}

func TestNew_UnknownStore(t *testing.T) {
	_, err := New("Sobeys", testConfig(t), logrus.New())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Sobeys")
}

func TestSupportedStores(t *testing.T) {
	assert.Equal(t, []string{"Loblaws", "Real Canadian Superstore", "Valu-mart", "Walmart", "Zehrs"}, SupportedStores())
}
