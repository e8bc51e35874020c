package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyShallowMerge(t *testing.T) {
	acc := map[string]FieldValue{
		"child.firstName": String("Amina"),
		"child.weightKg":  Number(3.2),
	}
	Patch{
		"child.firstName": String("Aminata"),
		"mother.literate": Boolean(true),
	}.Apply(acc)

	assert.Equal(t, String("Aminata"), acc["child.firstName"])
	assert.Equal(t, Number(3.2), acc["child.weightKg"])
	assert.Equal(t, Boolean(true), acc["mother.literate"])
}

func TestCheckCompatible(t *testing.T) {
	acc := map[string]FieldValue{
		"child.firstName": String("Amina"),
		"child.weightKg":  Number(3.2),
	}

	assert.NoError(t, Patch{"child.firstName": String("Aminata")}.CheckCompatible(acc))
	assert.NoError(t, Patch{"mother.firstName": String("Mariam")}.CheckCompatible(acc))

	err := Patch{"child.weightKg": String("heavy")}.CheckCompatible(acc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "child.weightKg")
}

func TestCheckCompatibleReportsFirstKeyDeterministically(t *testing.T) {
	acc := map[string]FieldValue{
		"a.field": String("x"),
		"b.field": Number(1),
	}
	patch := Patch{
		"b.field": Boolean(true),
		"a.field": Number(2),
	}
	for range 10 {
		err := patch.CheckCompatible(acc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a.field")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := Patch{"child.firstName": String("Amina")}
	clone := original.Clone()
	clone["child.firstName"] = String("mutated")

	assert.Equal(t, String("Amina"), original["child.firstName"])
}

func TestFieldValueJSONRoundtrip(t *testing.T) {
	patch := Patch{
		"child.firstName": String("Amina"),
		"child.weightKg":  Number(3.2),
		"mother.literate": Boolean(true),
	}
	data, err := json.Marshal(patch)
	require.NoError(t, err)

	var decoded Patch
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, patch, decoded)
}

func TestFieldValueUnmarshalDerivesKind(t *testing.T) {
	var patch Patch
	require.NoError(t, json.Unmarshal([]byte(`{"s":"x","n":42,"b":false}`), &patch))

	assert.Equal(t, KindString, patch["s"].Kind)
	assert.Equal(t, KindNumber, patch["n"].Kind)
	assert.Equal(t, KindBool, patch["b"].Kind)
	assert.Equal(t, 42.0, patch["n"].Num)
}

func TestFieldValueUnmarshalRejectsStructuredValues(t *testing.T) {
	var patch Patch
	err := json.Unmarshal([]byte(`{"child":{"firstName":"Amina"}}`), &patch)
	assert.Error(t, err)
}
