package langrunner

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/codescord/broker/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available in test environment", name)
	}
}

func TestRunPythonHappyPath(t *testing.T) {
	requireBinary(t, "python3")
	r := New(5*time.Second, nil)
	out, ok, err := r.Run(context.Background(), "python", []byte("print('Hello World!')"), "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Hello World!\n", string(out))
}

func TestRunUnsupportedLanguage(t *testing.T) {
	r := New(5*time.Second, nil)
	_, _, err := r.Run(context.Background(), "brainfuck", []byte("+++"), "")
	assert.True(t, errors.Is(err, protocol.ErrLangUnsupported))
}

func TestRunTimeout(t *testing.T) {
	requireBinary(t, "python3")
	r := New(200*time.Millisecond, nil)
	_, _, err := r.Run(context.Background(), "python", []byte("import time\ntime.sleep(5)"), "")
	assert.True(t, errors.Is(err, protocol.ErrJobTimeout))
}

func TestAliasResolution(t *testing.T) {
	assert.Equal(t, "python", resolve("py"))
	assert.Equal(t, "cpp", resolve("c++"))
	assert.Equal(t, "javascript", resolve("js"))
	assert.Equal(t, "go", resolve("go"))
}

func TestRunGoHappyPath(t *testing.T) {
	requireBinary(t, "go")
	r := New(10*time.Second, nil)
	out, ok, err := r.Run(context.Background(), "go", []byte(
		"package main\nimport \"fmt\"\nfunc main() { fmt.Println(\"Hello World!\") }\n"), "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Hello World!\n", string(out))
}

func TestRunJavaHappyPath(t *testing.T) {
	requireBinary(t, "javac")
	requireBinary(t, "java")
	r := New(10*time.Second, nil)
	out, ok, err := r.Run(context.Background(), "java", []byte(
		"public class script { public static void main(String[] args) { System.out.println(\"Hello World!\"); } }"), "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Hello World!\n", string(out))
}

func TestSplitArgv(t *testing.T) {
	assert.Equal(t, []string(nil), splitArgv(""))
	assert.Equal(t, []string{"a", "b"}, splitArgv("a b"))
	assert.Equal(t, []string{"a", "b"}, splitArgv("a  b"))
}
