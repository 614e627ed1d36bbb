package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out     *ssm.GetParameterOutput
	err     error
	lastIn  *ssm.GetParameterInput
	invoked bool
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.invoked = true
	f.lastIn = in
	return f.out, f.err
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestGetParameter(t *testing.T) {
	value := "sk-secret"
	fake := &fakeSSM{
		out: &ssm.GetParameterOutput{
			Parameter: &types.Parameter{Value: &value},
		},
	}
	c, err := New(fake)
	require.NoError(t, err)

	got, err := c.GetParameter(context.Background(), " /bridge/openai-api-key ")
	require.NoError(t, err)
	require.Equal(t, "sk-secret", got)

	require.Equal(t, "/bridge/openai-api-key", *fake.lastIn.Name)
	require.True(t, *fake.lastIn.WithDecryption)
}

func TestGetParameter_EmptyName(t *testing.T) {
	fake := &fakeSSM{}
	c, err := New(fake)
	require.NoError(t, err)

	_, err = c.GetParameter(context.Background(), "   ")
	require.Error(t, err)
	require.False(t, fake.invoked)
}

func TestGetParameter_APIError(t *testing.T) {
	fake := &fakeSSM{err: errors.New("throttled")}
	c, err := New(fake)
	require.NoError(t, err)

	_, err = c.GetParameter(context.Background(), "/bridge/token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "/bridge/token")
}

func TestGetParameter_MissingValue(t *testing.T) {
	fake := &fakeSSM{out: &ssm.GetParameterOutput{}}
	c, err := New(fake)
	require.NoError(t, err)

	_, err = c.GetParameter(context.Background(), "/bridge/token")
	require.Error(t, err)
}
