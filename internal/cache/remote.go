package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

const (
	// storageAccountEnv names the Azure Storage account that mirrors cache
	// artifacts between machines.
	storageAccountEnv = "EDITLOOP_STORAGE_ACCOUNT"

	// mirrorContainer holds the mirrored artifacts.
	mirrorContainer = "editloop-cache"

	// blobSuffix marks artifacts compressed for transfer.
	blobSuffix = ".zst"

	// transferConcurrency bounds parallel blob transfers.
	transferConcurrency = 8
)

// Mirror copies cache artifacts to and from an Azure Blob Storage container
// so a team shares model responses across machines. Artifacts keep their
// names and are zstd-compressed for transfer. Transfers only fill gaps;
// existing artifacts on either side are never overwritten.
type Mirror struct {
	client    *azblob.Client
	container string
}

// NewMirror builds a Mirror for the storage account named by
// EDITLOOP_STORAGE_ACCOUNT, authenticating with the default Azure
// credential chain.
func NewMirror() (*Mirror, error) {
	account := os.Getenv(storageAccountEnv)
	if account == "" {
		return nil, fmt.Errorf("%s is not set", storageAccountEnv)
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("building Azure credential: %w", err)
	}

	client, err := azblob.NewClient(accountURL(account), cred, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Telemetry: policy.TelemetryOptions{ApplicationID: "editloop"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("building blob client: %w", err)
	}

	return &Mirror{client: client, container: mirrorContainer}, nil
}

func accountURL(account string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net", account)
}

// Push uploads every local artifact the container does not hold yet and
// returns how many were uploaded.
func (m *Mirror) Push(ctx context.Context, c *ResponseCache) (int, error) {
	if c.dir == "" {
		return 0, errors.New("cache is disabled")
	}

	local, err := c.localArtifacts()
	if err != nil {
		return 0, err
	}
	if err := m.ensureContainer(ctx); err != nil {
		return 0, err
	}
	remote, err := m.remoteNames(ctx)
	if err != nil {
		return 0, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return 0, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer enc.Close()

	var pushed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(transferConcurrency)

	for _, name := range local {
		if remote[name+blobSuffix] {
			continue
		}
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(c.dir, name))
			if err != nil {
				return fmt.Errorf("reading artifact %s: %w", name, err)
			}
			if _, err := m.client.UploadBuffer(ctx, m.container, name+blobSuffix, enc.EncodeAll(data, nil), nil); err != nil {
				return fmt.Errorf("uploading %s: %w", name, err)
			}
			pushed.Add(1)
			return nil
		})
	}

	err = g.Wait()
	return int(pushed.Load()), err
}

// Pull downloads every remote artifact missing locally and returns how many
// were downloaded. A missing container counts as empty.
func (m *Mirror) Pull(ctx context.Context, c *ResponseCache) (int, error) {
	if c.dir == "" {
		return 0, errors.New("cache is disabled")
	}

	remote, err := m.remoteNames(ctx)
	if bloberror.HasCode(err, bloberror.ContainerNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return 0, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	var pulled atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(transferConcurrency)

	for blob := range remote {
		name, found := strings.CutSuffix(blob, blobSuffix)
		if !found {
			continue
		}
		if _, _, ok := splitArtifactName(name); !ok {
			continue
		}
		if _, err := os.Stat(filepath.Join(c.dir, name)); err == nil {
			continue
		}
		g.Go(func() error {
			resp, err := m.client.DownloadStream(ctx, m.container, blob, nil)
			if err != nil {
				return fmt.Errorf("downloading %s: %w", blob, err)
			}
			compressed, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("reading %s: %w", blob, err)
			}
			data, err := dec.DecodeAll(compressed, nil)
			if err != nil {
				return fmt.Errorf("decompressing %s: %w", blob, err)
			}
			if err := os.WriteFile(filepath.Join(c.dir, name), data, 0644); err != nil {
				return fmt.Errorf("writing artifact %s: %w", name, err)
			}
			pulled.Add(1)
			return nil
		})
	}

	err = g.Wait()
	return int(pulled.Load()), err
}

func (m *Mirror) ensureContainer(ctx context.Context) error {
	_, err := m.client.CreateContainer(ctx, m.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("creating container %s: %w", m.container, err)
	}
	return nil
}

func (m *Mirror) remoteNames(ctx context.Context) (map[string]bool, error) {
	names := make(map[string]bool)
	pager := m.client.NewListBlobsFlatPager(m.container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing remote artifacts: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names[*item.Name] = true
			}
		}
	}
	return names, nil
}

// localArtifacts lists the artifact file names in the cache directory.
func (c *ResponseCache) localArtifacts() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, _, ok := splitArtifactName(entry.Name()); ok {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
